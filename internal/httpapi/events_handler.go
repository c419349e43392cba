package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/domain"
)

// EventsHandler serves the realtime feeds as server-sent event streams. One
// goroutine per connected subscriber, driven by the bus subscription; the
// subscription is cancelled when the client disconnects.
type EventsHandler struct {
	bus bus.Bus
}

func NewEventsHandler(b bus.Bus) *EventsHandler {
	return &EventsHandler{bus: b}
}

// Catalog streams every catalog mutation to any session.
func (h *EventsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, domain.TopicCatalog, bus.All)
}

// Orders streams order mutations. Admin sessions get every order; customer
// sessions only their own, enforced here by the subscription filter so
// another customer's events are never written to this connection.
func (h *EventsHandler) Orders(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	filter := bus.OwnedBy(actor.ID)
	if actor.Role == domain.RoleAdmin {
		filter = bus.All
	}
	h.stream(w, r, domain.TopicOrders, filter)
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request, topic domain.Topic, filter bus.Filter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	sub, err := h.bus.Subscribe(r.Context(), topic, filter)
	if err != nil {
		handleError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The channel closes on client disconnect, bus shutdown, or when this
	// subscriber fell too far behind and was dropped; in every case the
	// client is expected to reconnect and resubscribe.
	for ev := range sub.C {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("httpapi: failed to marshal event seq=%d: %v", ev.Seq, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.Seq, data); err != nil {
			return
		}
		flusher.Flush()
	}
}
