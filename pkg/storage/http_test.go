package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestHTTP_RangedSeek(t *testing.T) {
	content := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "clip.raw", time.Time{}, bytes.NewReader(content))
	}))
	defer srv.Close()

	h := &HTTP{Client: srv.Client()}
	obj, err := h.Open(context.Background(), srv.URL+"/clip.raw")
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()
	if obj.Size() != int64(len(content)) {
		t.Fatalf("Size() = %d, want %d", obj.Size(), len(content))
	}

	if _, err := obj.Seek(10, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(obj)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("got %q, want abcdef", got)
	}
}

func TestHTTP_NoRangeSupportSkipsForward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	h := &HTTP{Client: srv.Client()}
	obj, err := h.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()
	obj.Seek(4, io.SeekStart)
	got, _ := io.ReadAll(obj)
	if string(got) != "456789" {
		t.Fatalf("got %q, want 456789", got)
	}
}

func TestHTTP_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := &HTTP{Client: srv.Client()}
	_, err := h.Open(context.Background(), srv.URL+"/missing.wav")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestRangeObject_SeekEndUnknownSize(t *testing.T) {
	obj := newRangeObject(context.Background(), -1, func(context.Context, int64) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	})
	if _, err := obj.Seek(0, io.SeekEnd); !errors.Is(err, ErrNotSeekable) {
		t.Fatalf("Seek(SeekEnd) = %v, want ErrNotSeekable", err)
	}
	if _, err := obj.Seek(-1, io.SeekStart); err == nil {
		t.Fatal("negative seek should fail")
	}
	obj.Close()
	if _, err := obj.Read(make([]byte, 1)); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Read after Close = %v", err)
	}
}

func TestHTTP_CloseWakesStalledRead(t *testing.T) {
	requested := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(requested)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	h := &HTTP{Client: srv.Client()}
	obj, err := h.Open(context.Background(), srv.URL+"/live.raw")
	if err != nil {
		t.Fatal(err)
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := obj.Read(make([]byte, 16))
		readErr <- err
	}()

	select {
	case <-requested:
	case <-time.After(5 * time.Second):
		t.Fatal("body was never requested")
	}
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		obj.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked behind a stalled Read")
	}
	select {
	case err := <-readErr:
		if err == nil {
			t.Fatal("stalled Read returned no error after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stalled Read did not return after Close")
	}
}
