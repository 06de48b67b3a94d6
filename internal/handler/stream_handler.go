package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/observability"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
	"github.com/google/uuid"
)

// Live result streams are served over SSE. Each connection owns one watch
// slot; closing the connection disposes the subscription.

type snapshotEvent struct {
	Properties []models.Property `json:"properties"`
	Loaded     int               `json:"loaded,omitempty"`
	Total      int               `json:"total,omitempty"`
}

func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event snapshotEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *Handler) StreamProperties(w http.ResponseWriter, r *http.Request) {
	flusher, ok := sseHeaders(w)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	filter := parseFilter(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := query.Build(filter, limit, nil)

	slot := "stream:" + uuid.NewString()
	events := make(chan snapshotEvent, 8)
	dispose, err := h.watcher.Subscribe(r.Context(), slot, q, func(props []models.Property) {
		select {
		case events <- snapshotEvent{Properties: props}:
		default:
			// A slow consumer drops intermediate snapshots; only the
			// latest state matters.
		}
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer dispose()

	observability.ActiveSubscriptions.Inc()
	defer observability.ActiveSubscriptions.Dec()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-events:
			writeEvent(w, flusher, event)
		}
	}
}

func (h *Handler) StreamSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := uid(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
		return
	}

	ids, err := h.users.SavedPropertyIDs(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	if len(ids) == 0 {
		writeEvent(w, flusher, snapshotEvent{Properties: []models.Property{}})
		<-r.Context().Done()
		return
	}

	slot := "saved:" + id
	events := make(chan snapshotEvent, 8)
	dispose, err := h.watcher.SubscribeSet(r.Context(), slot, ids, func(props []models.Property, loaded int) {
		select {
		case events <- snapshotEvent{Properties: props, Loaded: loaded, Total: len(ids)}:
		default:
		}
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer dispose()

	observability.ActiveSubscriptions.Inc()
	defer observability.ActiveSubscriptions.Dec()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-events:
			writeEvent(w, flusher, event)
		}
	}
}
