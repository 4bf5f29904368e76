// Package api exposes the race lifecycle over plain HTTP JSON. The ws
// package covers the realtime turn traffic, this one covers lobby style
// operations and poll-friendly reads.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/gridrush/engine/log"
	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/service"
)

type Handler struct {
	svc    *service.RaceService
	track  *model.Track
	cars   map[string]model.CarSetup
	logger *log.Logger
}

type Option func(h *Handler)

func WithService(svc *service.RaceService) Option {
	return func(h *Handler) { h.svc = svc }
}

// WithCatalog provides the track layout and the selectable car setups.
func WithCatalog(track *model.Track, cars map[string]model.CarSetup) Option {
	return func(h *Handler) {
		h.track = track
		h.cars = cars
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func NewHandler(opts ...Option) *Handler {
	ret := &Handler{logger: log.Default().Named("api")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Mux returns the route table. Mount it behind the CORS wrapper.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/races", h.createRace)
	mux.HandleFunc("POST /api/races/{raceID}/actions", h.submitAction)
	mux.HandleFunc("GET /api/races/{raceID}/phase", h.turnPhase)
	mux.HandleFunc("GET /api/races/{raceID}/participants/{participantID}/hand", h.boostAvailability)
	mux.HandleFunc("GET /api/races/{raceID}/participants/{participantID}/preview", h.preview)
	mux.HandleFunc("GET /api/races/{raceID}/participants/{participantID}/view", h.localView)
	mux.HandleFunc("GET /api/races/{raceID}/participants/{participantID}/history", h.lapHistory)
	mux.HandleFunc("GET /api/cars", h.listCars)
	mux.HandleFunc("GET /api/track", h.getTrack)
	return mux
}

type createRaceEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Car  string `json:"car"`
}

type createRaceRequest struct {
	TotalLaps int               `json:"totalLaps"`
	Entries   []createRaceEntry `json:"entries"`
}

type createRaceResponse struct {
	RaceID string `json:"raceId"`
}

func (h *Handler) createRace(w http.ResponseWriter, r *http.Request) {
	var req createRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, model.ErrorPayload{
			Kind: model.ErrKindInternal, Message: "malformed request body",
		})
		return
	}
	roster := make([]model.Participant, 0, len(req.Entries))
	for _, entry := range req.Entries {
		car, ok := h.cars[entry.Car]
		if !ok {
			h.writeError(w, http.StatusBadRequest, model.ErrorPayload{
				Kind:    model.ErrKindCarValidationFailed,
				Message: "unknown car " + entry.Car,
			})
			return
		}
		roster = append(roster, model.Participant{ID: entry.ID, Name: entry.Name, Car: car})
	}
	raceID, err := h.svc.CreateRace(r.Context(), service.CreateRaceRequest{
		Track:     h.track,
		Roster:    roster,
		TotalLaps: req.TotalLaps,
	})
	if err != nil {
		h.writeError(w, http.StatusBadRequest, model.ErrorPayload{
			Kind: model.ErrKindInternal, Message: err.Error(),
		})
		return
	}
	h.logger.Info("race created",
		log.String("raceId", raceID),
		log.Int("entries", len(roster)),
		log.Int("totalLaps", req.TotalLaps))
	h.writeJSON(w, http.StatusCreated, createRaceResponse{RaceID: raceID})
}

type submitActionRequest struct {
	ParticipantID string `json:"participantId"`
	BoostValue    int    `json:"boostValue"`
}

func (h *Handler) submitAction(w http.ResponseWriter, r *http.Request) {
	raceID := r.PathValue("raceID")
	var req submitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, model.ErrorPayload{
			Kind: model.ErrKindInternal, Message: "malformed request body",
		})
		return
	}
	if err := h.svc.SubmitAction(r.Context(), raceID, req.ParticipantID, req.BoostValue); err != nil {
		payload := h.svc.ErrorPayload(raceID, req.ParticipantID, err)
		h.writeError(w, statusForKind(payload.Kind, err), payload)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) turnPhase(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (any, error) {
		return h.svc.GetTurnPhase(r.PathValue("raceID"))
	})
}

func (h *Handler) boostAvailability(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (any, error) {
		return h.svc.GetBoostAvailability(r.PathValue("raceID"), r.PathValue("participantID"))
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (any, error) {
		return h.svc.GetPerformancePreview(r.PathValue("raceID"), r.PathValue("participantID"))
	})
}

func (h *Handler) localView(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (any, error) {
		return h.svc.GetLocalView(r.PathValue("raceID"), r.PathValue("participantID"))
	})
}

func (h *Handler) lapHistory(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (any, error) {
		return h.svc.GetLapHistory(r.PathValue("raceID"), r.PathValue("participantID"))
	})
}

func (h *Handler) listCars(w http.ResponseWriter, _ *http.Request) {
	cars := lo.Values(h.cars)
	// stable ordering for clients
	slices.SortFunc(cars, func(a, b model.CarSetup) int {
		return strings.Compare(a.CarName, b.CarName)
	})
	h.writeJSON(w, http.StatusOK, cars)
}

func (h *Handler) getTrack(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.track)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func() (any, error)) {
	data, err := fn()
	if err != nil {
		payload := h.svc.ErrorPayload(r.PathValue("raceID"), r.PathValue("participantID"), err)
		h.writeError(w, statusForKind(payload.Kind, err), payload)
		return
	}
	h.writeJSON(w, http.StatusOK, data)
}

func statusForKind(kind model.ErrorKind, err error) int {
	if errors.Is(err, service.ErrRaceNotFound) {
		return http.StatusNotFound
	}
	switch kind {
	case model.ErrKindInvalidBoostValue,
		model.ErrKindCardNotAvailable,
		model.ErrKindDuplicateSubmission,
		model.ErrKindParticipantNotActive,
		model.ErrKindCarValidationFailed:
		return http.StatusConflict
	case model.ErrKindLapTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("response encode failed", log.ErrorField(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, payload model.ErrorPayload) {
	h.writeJSON(w, status, payload)
}
