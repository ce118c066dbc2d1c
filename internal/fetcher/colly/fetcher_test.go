package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchReturnsHTMLBody(t *testing.T) {
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLanguage = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>ok</title></head></html>"))
	}))
	defer srv.Close()

	fetcher := New(Config{
		UserAgent: "newsfeed-test/1.0",
		Timeout:   5 * time.Second,
		Headers:   http.Header{"Accept-Language": []string{"en-US"}},
	})

	result, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Contains(t, string(result.Body), "<title>ok</title>")
	require.Equal(t, "en-US", gotLanguage)
}

func TestFetchReportsFinalURLAfterRedirect(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/full-story", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/full-story", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})

	fetcher := New(Config{Timeout: 5 * time.Second})

	result, err := fetcher.Fetch(context.Background(), srv.URL+"/short")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/full-story", result.FinalURL)
}

func TestFetchAbortsNonHTMLContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer srv.Close()

	fetcher := New(Config{Timeout: 5 * time.Second})

	result, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "a non-HTML target is an expected outcome")
	require.Nil(t, result.Body)
}

func TestFetchSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fetcher := New(Config{Timeout: 5 * time.Second})

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetchCancellationReturnsNoPartialResult(t *testing.T) {
	// The server sends headers and part of the body, then stalls, so the
	// collector goroutine is still mid-response when the context expires.
	// The caller must get back the zero result, never fields the still
	// running callbacks are filling in.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>partial"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := New(Config{Timeout: 30 * time.Second})

	result, err := fetcher.Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, result.FinalURL)
	require.Zero(t, result.StatusCode)
	require.Nil(t, result.Body)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := New(Config{Timeout: 30 * time.Second})

	_, err := fetcher.Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
