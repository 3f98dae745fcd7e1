package tools

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func imageServer(t *testing.T, contentType string, body []byte) (*httptest.Server, *int) {
	t.Helper()
	hits := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*hits++
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestImageFetch(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	srv, _ := imageServer(t, "image/png", png)
	tool := NewImage(srv.Client())

	res, err := tool.Execute(context.Background(), map[string]interface{}{"url": srv.URL + "/pic.png"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Image == nil || res.Image.MIME != "image/png" {
		t.Fatalf("missing or mistyped image payload: %+v", res.Image)
	}
	if !bytes.Equal(res.Image.Data, png) {
		t.Fatalf("image bytes mangled")
	}
	if res.Content == "" {
		t.Fatalf("expected a textual acknowledgement for the model")
	}
}

func TestImageFetchUsesCache(t *testing.T) {
	srv, hits := imageServer(t, "image/jpeg; charset=binary", []byte{1, 2, 3})
	tool := NewImage(srv.Client())
	args := map[string]interface{}{"url": srv.URL + "/same.jpg"}

	if _, err := tool.Execute(context.Background(), args); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	res, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if *hits != 1 {
		t.Fatalf("second fetch should come from the cache, server saw %d hits", *hits)
	}
	if res.Image == nil || res.Image.MIME != "image/jpeg" {
		t.Fatalf("cached payload wrong: %+v", res.Image)
	}
}

func TestImageRejectsWrongType(t *testing.T) {
	srv, _ := imageServer(t, "text/html", []byte("<html>not an image</html>"))
	tool := NewImage(srv.Client())

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"url": srv.URL}); err == nil {
		t.Fatalf("non-image content type must be rejected")
	}
}

func TestImageRejectsOversizedBody(t *testing.T) {
	srv, _ := imageServer(t, "image/png", make([]byte, maxImageBytes+1))
	tool := NewImage(srv.Client())

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"url": srv.URL}); err == nil {
		t.Fatalf("oversized image must be rejected")
	}
}

func TestImageRejectsBadURL(t *testing.T) {
	tool := NewImage(http.DefaultClient)
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"url": "file:///etc/passwd"}); err == nil {
		t.Fatalf("non-http scheme must be rejected")
	}
}
