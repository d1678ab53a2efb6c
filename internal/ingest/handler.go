// Package ingest exposes the session lifecycle entry points over HTTP for
// authentication servers that run outside this process.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aadithya-v/sessionstate"
	"github.com/aadithya-v/sessionstate/publisher"
)

// maxBodyBytes bounds a single SessionData payload.
const maxBodyBytes = 64 << 10

// NewHandler routes
//
//	POST /sessions/created
//	POST /sessions/updated
//	POST /sessions/terminated
//
// to pub. Each body is a SessionData JSON object. Publishing is best effort,
// so a well-formed request is always answered with 202 Accepted. A payload
// without user or serviceProvider, or with trailing data, gets 400.
func NewHandler(pub publisher.SessionPublisher, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{pub: pub, logger: logger}

	r := chi.NewRouter()
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/created", h.handle(pub.PublishSessionCreation))
		r.Post("/updated", h.handle(pub.PublishSessionUpdate))
		r.Post("/terminated", h.handle(pub.PublishSessionTermination))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

var (
	errTrailingData = errors.New("trailing data after session payload")
	errMissingKey   = errors.New("user and serviceProvider are required")
)

type handler struct {
	pub    publisher.SessionPublisher
	logger *zap.Logger
}

func (h *handler) handle(publish func(context.Context, *sessionstate.SessionData)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		// An explicit JSON null is a session-less event and is accepted as a no-op.
		var data *sessionstate.SessionData
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&data); err != nil {
			h.reject(w, r, err)
			return
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			h.reject(w, r, errTrailingData)
			return
		}
		if data != nil && (data.User == "" || data.ServiceProvider == "") {
			h.reject(w, r, errMissingKey)
			return
		}

		publish(r.Context(), data)
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("rejecting malformed session payload", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "invalid session payload", http.StatusBadRequest)
}
