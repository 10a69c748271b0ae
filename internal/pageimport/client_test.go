package pageimport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientFetchEventPage(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(metaOnlyBody))
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(srv.Client()))
	candidate, err := c.FetchEventPage(context.Background(), srv.URL+"/event")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title != "Rooftop Mixer" {
		t.Errorf("title wrong: %q", candidate.Title)
	}
	if candidate.SourceURL != srv.URL+"/event" {
		t.Errorf("source URL not recorded: %q", candidate.SourceURL)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("user agent not set: %q", gotUA)
	}
}

func TestClientFetchEventPageNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(srv.Client()))
	if _, err := c.FetchEventPage(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404 response")
	}
}
