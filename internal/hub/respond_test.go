package hub

import (
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestQueryInt(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 25},
		{"10", 10},
		{"0", 25},
		{"-3", -3},
		{"7.9", 7},
		{"abc", 25},
		{"NaN", 25},
		{"Inf", 25},
		{"-Inf", 25},
		{"1e400", 25},
		{"1e30", queryIntMax},
		{"-1e30", -queryIntMax},
		{"99999999999999999999", queryIntMax},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/api/chat/alice?limit="+url.QueryEscape(tc.raw), nil)
		if got := queryInt(r, "limit", 25); got != tc.want {
			t.Errorf("queryInt(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestChatLimitNaNUsesDefault(t *testing.T) {
	th := newTestHub(t)
	for i := 0; i < 30; i++ {
		th.do(t, "POST", "/api/chat/alice", `{"agent":"alice","message":"m"}`)
	}
	var page struct {
		Messages []any `json:"messages"`
		Total    int   `json:"total"`
	}
	decode(t, th.do(t, "GET", "/api/chat/alice?limit=NaN", ""), &page)
	if page.Total != 30 || len(page.Messages) != 25 {
		t.Fatalf("expected default page of 25 of 30, got %d of %d", len(page.Messages), page.Total)
	}
	decode(t, th.do(t, "GET", "/api/chat/alice?limit=1e30", ""), &page)
	if len(page.Messages) != 30 {
		t.Fatalf("huge limit should clamp to the route max, got %d", len(page.Messages))
	}
}
