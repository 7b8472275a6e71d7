package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"gqlherd/internal/batcher"
	"gqlherd/internal/graphql"
	"gqlherd/internal/transport"
)

// queryRequest is the HTTP submission body
type queryRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// queryHandler handles POST /query submissions
type queryHandler struct {
	batcher *batcher.Batcher
	logger  zerolog.Logger
}

func newQueryHandler(b *batcher.Batcher, logger zerolog.Logger) *queryHandler {
	return &queryHandler{
		batcher: b,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// ServeHTTP submits the query and waits for its outcome. The freshness
// signal is caller-side: an explicit preview header or the presence of
// an auth token means the caller wants draft content and must never be
// served from a shared batch or cache.
func (h *queryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if body.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if err := graphql.ValidateQuery(body.Query); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fresh := r.Header.Get("X-Preview") == "true" || r.Header.Get("Authorization") != ""

	outCh := h.batcher.Submit(body.Query, body.Variables, fresh)

	select {
	case out := <-outCh:
		h.writeOutcome(w, out)
	case <-r.Context().Done():
		// Caller walked away; the work still settles on its own.
		return
	}
}

// writeOutcome maps a settled outcome onto the HTTP response
func (h *queryHandler) writeOutcome(w http.ResponseWriter, out batcher.Outcome) {
	w.Header().Set("Content-Type", "application/json")

	if out.Err == nil {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(out.Response)
		return
	}

	var respErr *graphql.ResponseError
	if errors.As(out.Err, &respErr) {
		// The upstream answered with envelope errors: pass them through
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(respErr.Response)
		return
	}

	status := http.StatusBadGateway
	if transport.IsPermanent(out.Err) {
		status = http.StatusUnprocessableEntity
	}

	h.logger.Warn().Err(out.Err).Int("attempts", out.Attempts).Msg("query rejected")

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&graphql.Response{
		Errors: []*graphql.Error{{Message: out.Err.Error()}},
	})
}
