package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

// maxBodyBytes caps event ingest bodies. Batches are expected to stay small;
// anything bigger is a client bug.
const maxBodyBytes = 1 << 20

// trackEventRequest is the wire form of one application event.
type trackEventRequest struct {
	Name      string            `json:"name"`
	TimeNanos int64             `json:"time_nanos"`
	Props     map[string]string `json:"props,omitempty"`
}

// trackBatchRequest wraps several events in a single request body.
type trackBatchRequest struct {
	Events []trackEventRequest `json:"events"`
}

// trackResponse acknowledges accepted events.
type trackResponse struct {
	Accepted int `json:"accepted"`
}

// statusResponse carries the live tracker snapshot.
type statusResponse struct {
	States domain.StatusSnapshot `json:"states"`
}

// listInteractionsResponse carries archived interaction records.
type listInteractionsResponse struct {
	Interactions []*domain.Interaction `json:"interactions"`
}

// errorResponse is the envelope for all error replies.
type errorResponse struct {
	Error *domain.APIError `json:"error"`
}

func (s *Server) handleTrackEvents(w http.ResponseWriter, r *http.Request) {
	events, apiErr := s.decodeEvents(r)
	if apiErr != nil {
		AddError(r.Context(), apiErr)
		writeAPIError(w, apiErr)
		return
	}

	for _, ev := range events {
		s.tracker.TrackEvent(ev)
	}

	AddLogField(r.Context(), "events", strconv.Itoa(len(events)))
	writeJSON(w, http.StatusAccepted, trackResponse{Accepted: len(events)})
}

func (s *Server) handleTrackMarkers(w http.ResponseWriter, r *http.Request) {
	events, apiErr := s.decodeEvents(r)
	if apiErr != nil {
		AddError(r.Context(), apiErr)
		writeAPIError(w, apiErr)
		return
	}

	for _, ev := range events {
		s.tracker.TrackMarker(ev)
	}

	AddLogField(r.Context(), "markers", strconv.Itoa(len(events)))
	writeJSON(w, http.StatusAccepted, trackResponse{Accepted: len(events)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	states := s.tracker.CurrentStates()
	if states == nil {
		states = domain.StatusSnapshot{}
	}
	writeJSON(w, http.StatusOK, statusResponse{States: states})
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		AddError(r.Context(), apiErr)
		writeAPIError(w, apiErr)
		return
	}

	records, err := s.store.ListInteractions(r.Context(), opts)
	if err != nil {
		AddError(r.Context(), err)
		writeAPIError(w, domain.ErrInternal("failed to list interactions"))
		return
	}
	if records == nil {
		records = []*domain.Interaction{}
	}

	writeJSON(w, http.StatusOK, listInteractionsResponse{Interactions: records})
}

func (s *Server) handleGetInteraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := s.store.GetInteraction(r.Context(), id)
	if err != nil {
		AddError(r.Context(), err)
		if errors.Is(err, domain.ErrNotFound) {
			writeAPIError(w, domain.ErrMissing(fmt.Sprintf("interaction %s not found", id)).WithParam("id"))
			return
		}
		writeAPIError(w, domain.ErrInternal("failed to load interaction"))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeEvents parses a request body holding either a single event object or
// a batch envelope. Events without a timestamp are stamped on arrival.
func (s *Server) decodeEvents(r *http.Request) ([]domain.LocalEvent, *domain.APIError) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.ErrBadRequest("failed to read request body")
	}

	items, apiErr := parseTrackBody(body)
	if apiErr != nil {
		return nil, apiErr
	}

	events := make([]domain.LocalEvent, 0, len(items))
	for i, item := range items {
		if item.Name == "" {
			return nil, domain.ErrBadRequest(fmt.Sprintf("event %d: name is required", i)).
				WithCode(domain.ErrorCodeInvalidEvent).
				WithParam("name")
		}
		nanos := item.TimeNanos
		if nanos == 0 {
			nanos = s.now().UnixNano()
		}
		events = append(events, domain.NewLocalEvent(item.Name, nanos, item.Props))
	}
	return events, nil
}

func parseTrackBody(body []byte) ([]trackEventRequest, *domain.APIError) {
	var batch trackBatchRequest
	if err := json.Unmarshal(body, &batch); err == nil && batch.Events != nil {
		return batch.Events, nil
	}

	var single trackEventRequest
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, domain.ErrBadRequest(`request body must be an event object or {"events": [...]}`)
	}
	return []trackEventRequest{single}, nil
}

func parseListOptions(r *http.Request) (ports.ListOptions, *domain.APIError) {
	var opts ports.ListOptions
	q := r.URL.Query()

	opts.Name = q.Get("name")

	if v := q.Get("errored"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, domain.ErrBadRequest("errored must be true or false").WithParam("errored")
		}
		opts.Errored = &b
	}

	if v := q.Get("since_ns"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return opts, domain.ErrBadRequest("since_ns must be an integer").WithParam("since_ns")
		}
		opts.SinceNanos = n
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, domain.ErrBadRequest("limit must be an integer").WithParam("limit")
		}
		opts.Limit = n
	}

	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, apiErr *domain.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatusCode())
	json.NewEncoder(w).Encode(errorResponse{Error: apiErr})
}
