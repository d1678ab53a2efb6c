package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadithya-v/sessionstate"
)

type call struct {
	kind string
	data *sessionstate.SessionData
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakePublisher) record(kind string, data *sessionstate.SessionData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: kind, data: data})
}

func (f *fakePublisher) PublishSessionCreation(_ context.Context, data *sessionstate.SessionData) {
	f.record("created", data)
}

func (f *fakePublisher) PublishSessionUpdate(_ context.Context, data *sessionstate.SessionData) {
	f.record("updated", data)
}

func (f *fakePublisher) PublishSessionTermination(_ context.Context, data *sessionstate.SessionData) {
	f.record("terminated", data)
}

const body = `{"user":"alice","sessionId":"s1","serviceProvider":"sp1","createdTimestamp":1000,"updatedTimestamp":2000}`

func TestHandlerRoutesLifecycleEvents(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub, nil)

	for _, kind := range []string{"created", "updated", "terminated"} {
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+kind, strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code, kind)
	}

	require.Len(t, pub.calls, 3)
	assert.Equal(t, "created", pub.calls[0].kind)
	assert.Equal(t, "updated", pub.calls[1].kind)
	assert.Equal(t, "terminated", pub.calls[2].kind)

	data := pub.calls[0].data
	require.NotNil(t, data)
	assert.Equal(t, "alice", data.User)
	assert.Equal(t, "s1", data.SessionID)
	assert.Equal(t, "sp1", data.ServiceProvider)
	assert.EqualValues(t, 1000, data.CreatedTimestamp)
	assert.EqualValues(t, 2000, data.UpdatedTimestamp)
}

func TestHandlerNullBody(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions/terminated", strings.NewReader("null"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "terminated", pub.calls[0].kind)
	assert.Nil(t, pub.calls[0].data)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/sessions/created", "{", http.StatusBadRequest},
		{"empty body", http.MethodPost, "/sessions/created", "", http.StatusBadRequest},
		{"oversized body", http.MethodPost, "/sessions/created", `{"user":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusBadRequest},
		{"trailing object", http.MethodPost, "/sessions/created", body + body, http.StatusBadRequest},
		{"trailing garbage", http.MethodPost, "/sessions/created", body + " x", http.StatusBadRequest},
		{"trailing brace", http.MethodPost, "/sessions/created", body + "}", http.StatusBadRequest},
		{"empty object", http.MethodPost, "/sessions/created", "{}", http.StatusBadRequest},
		{"missing service provider", http.MethodPost, "/sessions/updated", `{"user":"alice","sessionId":"s1"}`, http.StatusBadRequest},
		{"missing user", http.MethodPost, "/sessions/terminated", `{"serviceProvider":"sp1"}`, http.StatusBadRequest},
		{"unknown event", http.MethodPost, "/sessions/expired", body, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/sessions/created", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Empty(t, pub.calls)
}

func TestHandlerHealthz(t *testing.T) {
	h := NewHandler(&fakePublisher{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
