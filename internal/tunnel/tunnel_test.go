package tunnel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForwarder struct {
	url    string
	mu     sync.Mutex
	closed bool
}

func (f *fakeForwarder) URL() string { return f.url }

func (f *fakeForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeForwarder) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeOpener struct {
	fwd     *fakeForwarder
	err     error
	backend *url.URL
}

func (o *fakeOpener) Open(_ context.Context, backend *url.URL) (Forwarder, error) {
	o.backend = backend
	if o.err != nil {
		return nil, o.err
	}
	return o.fwd, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNotifier(url string) *Notifier {
	n := NewNotifier(url, time.Second)
	n.MachineID = "rig-01"
	n.Now = func() time.Time { return time.Date(2025, 3, 1, 14, 5, 9, 123456000, time.UTC) }
	return n
}

func TestNotifierPostsRegistration(t *testing.T) {
	type request struct {
		method, contentType string
		body                Registration
	}
	requests := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{method: r.Method, contentType: r.Header.Get("Content-Type")}
		_ = json.NewDecoder(r.Body).Decode(&req.body)
		requests <- req
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := fixedNotifier(srv.URL).Notify(context.Background(), "https://abcd.ngrok-free.app")
	require.NoError(t, err)

	req := <-requests
	got := req.body
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "application/json", req.contentType)
	assert.Equal(t, Registration{
		NgrokURL:  "https://abcd.ngrok-free.app",
		Timestamp: "2025-03-01 14:05:09.123456",
		MachineID: "rig-01",
	}, got)
}

func TestNotifierRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid data format"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := fixedNotifier(srv.URL).Notify(context.Background(), "https://abcd.ngrok-free.app")

	assert.ErrorContains(t, err, "status 400")
}

func TestNotifierNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := fixedNotifier(srv.URL).Notify(context.Background(), "https://abcd.ngrok-free.app")

	assert.Error(t, err)
}

func TestPublisherPublish(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	opener := &fakeOpener{fwd: &fakeForwarder{url: "https://abcd.ngrok-free.app"}}
	pub := NewPublisher(opener, fixedNotifier(srv.URL), discardLogger())

	fwd, err := pub.Publish(context.Background(), 8765)
	require.NoError(t, err)

	assert.Equal(t, "https://abcd.ngrok-free.app", fwd.URL())
	assert.Equal(t, "http://localhost:8765", opener.backend.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublisherNotificationFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opener := &fakeOpener{fwd: &fakeForwarder{url: "https://abcd.ngrok-free.app"}}
	pub := NewPublisher(opener, fixedNotifier(srv.URL), discardLogger())

	fwd, err := pub.Publish(context.Background(), 8765)

	assert.NoError(t, err)
	assert.NotNil(t, fwd)
}

func TestPublisherWithoutNotifyURL(t *testing.T) {
	opener := &fakeOpener{fwd: &fakeForwarder{url: "https://abcd.ngrok-free.app"}}
	pub := NewPublisher(opener, fixedNotifier(""), discardLogger())

	_, err := pub.Publish(context.Background(), 8765)

	assert.NoError(t, err)
}

func TestPublisherRunTunnelFailure(t *testing.T) {
	opener := &fakeOpener{err: errors.New("authentication failed: missing authtoken")}
	pub := NewPublisher(opener, fixedNotifier(""), discardLogger())

	done := make(chan error, 1)
	go func() { done <- pub.Run(context.Background(), 8765) }()

	select {
	case err := <-done:
		assert.NoError(t, err, "a missing tunnel never fails startup")
	case <-time.After(time.Second):
		t.Fatal("Run blocked after a tunnel failure")
	}
}

func TestPublisherRunClosesOnCancel(t *testing.T) {
	fwd := &fakeForwarder{url: "https://abcd.ngrok-free.app"}
	pub := NewPublisher(&fakeOpener{fwd: fwd}, fixedNotifier(""), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx, 8765) }()

	cancel()
	require.NoError(t, <-done)
	assert.True(t, fwd.isClosed())
}
