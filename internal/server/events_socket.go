package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/sentinel-dashboard/internal/events"
)

const writeTimeout = 5 * time.Second

// EventsSocketHandler pushes bus events over a websocket. ?format=msgpack switches
// the frames from JSON text to msgpack binary.
type EventsSocketHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsSocketHandler creates a new websocket events handler.
func NewEventsSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// frameEncoder turns an event into a websocket frame.
type frameEncoder func(v interface{}) (websocket.MessageType, []byte, error)

func encodeJSONFrame(v interface{}) (websocket.MessageType, []byte, error) {
	data, err := json.Marshal(v)
	return websocket.MessageText, data, err
}

func encodeMsgpackFrame(v interface{}) (websocket.MessageType, []byte, error) {
	data, err := msgpack.Marshal(v)
	return websocket.MessageBinary, data, err
}

// ServeHTTP handles GET /api/events/ws.
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	encode := encodeJSONFrame
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
	case "msgpack":
		encode = encodeMsgpackFrame
	default:
		writeError(w, h.log, http.StatusBadRequest, "unsupported format "+format)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	clientID := uuid.NewString()
	log := h.log.With().Str("client_id", clientID).Logger()

	eventChan, unsubscribe := subscribe(h.eventBus, parseTypes(r.URL.Query().Get("types")), log)
	defer unsubscribe()

	// The page never sends anything; CloseRead handles pings and the close handshake.
	ctx := conn.CloseRead(r.Context())

	log.Info().Msg("Client connected to event socket")
	if err := h.write(ctx, conn, encode, map[string]interface{}{"type": "connected", "client_id": clientID}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Client disconnected from event socket")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.write(ctx, conn, encode, event); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Msg("Failed to write event")
				}
				return
			}
		}
	}
}

func (h *EventsSocketHandler) write(ctx context.Context, conn *websocket.Conn, encode frameEncoder, v interface{}) error {
	typ, data, err := encode(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, typ, data)
}
