package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexInjectsBuildStamp(t *testing.T) {
	th := newTestHub(t)
	for _, p := range []string{"/", "/index.html"} {
		w := th.do(t, http.MethodGet, p, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d", p, w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, `<script>window.__MONITOR_BUILD__="build-1";</script></head>`) {
			t.Fatalf("%s: missing build stamp: %s", p, body)
		}
	}
}

func TestStampBuildWithoutHead(t *testing.T) {
	got := StampBuild("<body>x</body>", "b")
	if got != `<body>x<script>window.__MONITOR_BUILD__="b";</script></body>` {
		t.Fatalf("unexpected stamp: %s", got)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	th := newTestHub(t)
	if w := th.do(t, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAssetServing(t *testing.T) {
	th := newTestHub(t)
	w := th.do(t, http.MethodGet, "/assets/logo.png", "")
	if w.Code != http.StatusOK || w.Body.String() != "png" {
		t.Fatalf("expected asset, got %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w := th.do(t, http.MethodGet, "/assets/missing.css", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing asset, got %d", w.Code)
	}
}

func TestAssetTraversalRefused(t *testing.T) {
	th := newTestHub(t)
	for _, p := range []string{"/assets/../index.html", "/assets/../../etc/passwd", "/assets/.."} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = p
		w := httptest.NewRecorder()
		th.srv.handleAsset(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", p, w.Code)
		}
	}
}
