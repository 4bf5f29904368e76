// Package ws is the realtime client surface: submissions come in as
// JSON envelopes, committed lap results are pushed to every connected
// client.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/gridrush/engine/log"
	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/service"
	"github.com/gridrush/engine/pkg/utils/broadcast"
)

// Msg is the wire envelope: a type tag plus raw payload.
type Msg struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

type actionRequest struct {
	RaceID        string `json:"raceId"`
	ParticipantID string `json:"participantId"`
	BoostValue    int    `json:"boostValue"`
}

type queryRequest struct {
	RaceID        string `json:"raceId"`
	ParticipantID string `json:"participantId,omitempty"`
}

const (
	pingInterval  = 15 * time.Second
	sendQueueSize = 64
)

type Hub struct {
	svc           *service.RaceService
	results       broadcast.BroadcastServer[*model.LapResult]
	logger        *log.Logger
	printMessages bool
}

type Option func(h *Hub)

func WithService(svc *service.RaceService) Option {
	return func(h *Hub) { h.svc = svc }
}

func WithResults(results broadcast.BroadcastServer[*model.LapResult]) Option {
	return func(h *Hub) { h.results = results }
}

func WithLogger(logger *log.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithPrintMessages dumps incoming payloads on debug level.
func WithPrintMessages(enabled bool) Option {
	return func(h *Hub) { h.printMessages = enabled }
}

func NewHub(opts ...Option) *Hub {
	ret := &Hub{logger: log.Default().Named("ws")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// ServeWS upgrades the connection and runs the per-client read loop.
// Writes (responses and lap-result pushes) go through a send queue
// drained by a separate goroutine.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", log.ErrorField(err))
		return
	}
	ctx := r.Context()
	send := make(chan []byte, sendQueueSize)
	h.logger.Debug("client connected", log.String("remote", r.RemoteAddr))

	var resultCh <-chan *model.LapResult
	if h.results != nil {
		resultCh = h.results.Subscribe()
		defer h.results.CancelSubscription(resultCh)
	}

	go h.writeLoop(ctx, conn, send, resultCh)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.logger.Debug("client disconnected", log.String("remote", r.RemoteAddr))
			return
		}
		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			h.enqueue(send, h.errorMsg(model.ErrorPayload{
				Kind: model.ErrKindInternal, Message: "malformed message",
			}))
			continue
		}
		if h.printMessages {
			h.logger.Debug("incoming", log.String("type", msg.T), log.Any("payload", msg.M))
		}
		h.enqueue(send, h.handle(ctx, &msg))
	}
}

func (h *Hub) writeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	send <-chan []byte,
	results <-chan *model.LapResult,
) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-send:
			if !ok {
				return
			}
			_ = conn.Write(ctx, websocket.MessageText, msg)
		case result, ok := <-results:
			if !ok {
				return
			}
			_ = conn.Write(ctx, websocket.MessageText, marshalMsg("lap_result", result))
		case <-ping.C:
			_ = conn.Ping(ctx)
		}
	}
}

func (h *Hub) enqueue(send chan<- []byte, msg []byte) {
	select {
	case send <- msg:
	default:
		h.logger.Warn("send queue full, dropping message")
	}
}

//nolint:cyclop // plain message dispatch
func (h *Hub) handle(ctx context.Context, msg *Msg) []byte {
	switch msg.T {
	case "submit_action":
		var req actionRequest
		if err := json.Unmarshal(msg.M, &req); err != nil {
			return h.errorMsg(model.ErrorPayload{
				Kind: model.ErrKindInternal, Message: "malformed submit_action payload",
			})
		}
		if err := h.svc.SubmitAction(ctx, req.RaceID, req.ParticipantID, req.BoostValue); err != nil {
			return h.errorMsg(h.svc.ErrorPayload(req.RaceID, req.ParticipantID, err))
		}
		return marshalMsg("submit_ok", req)
	case "get_turn_phase":
		return h.query(msg.M, func(req queryRequest) (any, error) {
			return h.svc.GetTurnPhase(req.RaceID)
		}, "turn_phase")
	case "get_boost_availability":
		return h.query(msg.M, func(req queryRequest) (any, error) {
			return h.svc.GetBoostAvailability(req.RaceID, req.ParticipantID)
		}, "boost_availability")
	case "get_performance_preview":
		return h.query(msg.M, func(req queryRequest) (any, error) {
			return h.svc.GetPerformancePreview(req.RaceID, req.ParticipantID)
		}, "performance_preview")
	case "get_local_view":
		return h.query(msg.M, func(req queryRequest) (any, error) {
			return h.svc.GetLocalView(req.RaceID, req.ParticipantID)
		}, "local_view")
	case "get_lap_history":
		return h.query(msg.M, func(req queryRequest) (any, error) {
			return h.svc.GetLapHistory(req.RaceID, req.ParticipantID)
		}, "lap_history")
	default:
		return h.errorMsg(model.ErrorPayload{
			Kind: model.ErrKindInternal, Message: "unknown message type " + msg.T,
		})
	}
}

func (h *Hub) query(raw json.RawMessage, fn func(queryRequest) (any, error), respType string) []byte {
	var req queryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return h.errorMsg(model.ErrorPayload{
			Kind: model.ErrKindInternal, Message: "malformed query payload",
		})
	}
	data, err := fn(req)
	if err != nil {
		return h.errorMsg(h.svc.ErrorPayload(req.RaceID, req.ParticipantID, err))
	}
	return marshalMsg(respType, data)
}

func (h *Hub) errorMsg(payload model.ErrorPayload) []byte {
	return marshalMsg("error", payload)
}

func marshalMsg(msgType string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	out, _ := json.Marshal(Msg{T: msgType, M: raw})
	return out
}
