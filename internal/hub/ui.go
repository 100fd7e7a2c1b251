package hub

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
)

const assetsPrefix = "/assets/"

// handleIndex serves the dashboard with the build stamp injected.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if s.ui == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	html, err := fs.ReadFile(s.ui, "index.html")
	if err != nil {
		slog.Error("Index page unavailable", "error", err)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(StampBuild(string(html), s.buildID)))
}

// StampBuild injects window.__MONITOR_BUILD__ before </head>, or before
// </body> when there is no head.
func StampBuild(html, buildID string) string {
	id, _ := json.Marshal(buildID)
	stamp := "<script>window.__MONITOR_BUILD__=" + string(id) + ";</script>"
	if strings.Contains(html, "</head>") {
		return strings.Replace(html, "</head>", stamp+"</head>", 1)
	}
	return strings.Replace(html, "</body>", stamp+"</body>", 1)
}

// handleAsset serves files under the assets subtree. Anything resolving
// outside it is a 404.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name, ok := assetName(r.URL.Path)
	if !ok || s.ui == nil {
		slog.Debug("Asset not found", "path", r.URL.Path)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	data, err := fs.ReadFile(s.ui, name)
	if err != nil {
		slog.Debug("Asset not found", "path", r.URL.Path)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write(data)
}

// assetName maps a request path to an fs name inside assets/.
func assetName(urlPath string) (string, bool) {
	if !strings.HasPrefix(urlPath, assetsPrefix) {
		return "", false
	}
	cleaned := path.Clean(urlPath)
	if !strings.HasPrefix(cleaned, assetsPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(cleaned, "/")
	if !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}
