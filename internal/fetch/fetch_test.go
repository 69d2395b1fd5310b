package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_UserAgentAndCookie(t *testing.T) {
	t.Setenv("COLLECTOR_UA", "test-agent/1.0")
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, err := New(Options{Timeout: 2 * time.Second, Cookie: "sessionid=abc"})
	require.NoError(t, err)
	resp, err := cl.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "sessionid=abc", gotCookie)
}

func TestFetch_RetryOnStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, err := New(Options{Retry: 1, Timeout: 2 * time.Second})
	require.NoError(t, err)
	resp, err := cl.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cl, _ := New(Options{Retry: 2, Timeout: 2 * time.Second})
	_, err := cl.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cl, _ := New(Options{Timeout: 100 * time.Millisecond})
	_, err := cl.Get(context.Background(), srv.URL)
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetch_OpenFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/user/u9", http.StatusFound)
	})
	mux.HandleFunc("/user/u9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h1 data-e2e="user-title">九</h1>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cl, _ := New(Options{Timeout: 2 * time.Second})
	page, err := cl.Open(context.Background(), srv.URL+"/short")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/user/u9", page.URL())
	html, err := page.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "九")
}
