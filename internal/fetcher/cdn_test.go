package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ik-labs/hk-npm/pkg/models"
)

func TestCDNStrategy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/left-pad@1.0.0/src/index.ts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("export function leftPad(s: string): string { return s; }"))
	})
	mux.HandleFunc("/left-pad@1.0.0/index.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("module.exports = leftPad;"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newCDNStrategy(srv.URL, srv.Client())
	res, err := s.Attempt(context.Background(), Request{Name: "left-pad", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Strategy != models.StrategyCDN {
		t.Fatalf("res = %+v, want a cdn result", res)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files = %+v, want the two served entry points", res.Files)
	}
	for _, f := range res.Files {
		if f.Path != "src/index.ts" && f.Path != "index.js" {
			t.Errorf("unexpected path %q", f.Path)
		}
	}
}

func TestCDNStrategyNothingServed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newCDNStrategy(srv.URL, srv.Client())
	res, err := s.Attempt(context.Background(), Request{Name: "ghost-pkg", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("res = %+v, want nil", res)
	}
}
