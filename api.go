package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
)

// API exposes the judge's control surface over HTTP. All room mutations go
// through the Controller so per-room locking and persistence stay in one place.
type API struct {
	ctrl *Controller
	hub  *Hub
	log  *AppLogger
}

func NewAPI(ctrl *Controller, hub *Hub, logger *AppLogger) *API {
	return &API{ctrl: ctrl, hub: hub, log: logger}
}

type createRoomRequest struct {
	Seats    [][]string   `json:"seats"` // roles per seat, index 0 is seat 1
	Settings RoomSettings `json:"settings"`
}

type submitActionRequest struct {
	ActionID string `json:"action_id"`
	Actor    int    `json:"actor"`
	Targets  []int  `json:"targets"`
	Source   Source `json:"source"`
}

type seatRequest struct {
	Seat int `json:"seat"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR [writeJSON]: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes. Anything not
// recognized is treated as a bad request: the judge sent something the
// game state cannot accept.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrRoomExists):
		status = http.StatusConflict
	case errors.Is(err, ErrStaleRoom):
		status = http.StatusConflict
	case errors.Is(err, errGameOver):
		status = http.StatusConflict
	case errors.Is(err, errWaitOutstanding):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Seats) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "at least one seat is required"})
		return
	}
	room, err := a.ctrl.CreateRoom(req.Seats, req.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (a *API) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.ctrl.Room(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) handleStartGame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.ctrl.StartGame(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	room, err := a.ctrl.Room(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.ctrl.Advance(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	room, err := a.ctrl.Room(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var req submitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = SourcePlayer
	}
	inst := ActionInstance{
		ActionID: req.ActionID,
		Actor:    req.Actor,
		Targets:  req.Targets,
		Source:   req.Source,
	}
	accepted, err := a.ctrl.Submit(r.Context(), r.PathValue("id"), inst)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accepted)
}

func (a *API) handleAvailableActions(w http.ResponseWriter, r *http.Request) {
	seat, err := strconv.Atoi(r.URL.Query().Get("seat"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "seat query parameter must be a seat number"})
		return
	}
	actions, err := a.ctrl.AvailableActions(r.PathValue("id"), seat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (a *API) handleExpel(w http.ResponseWriter, r *http.Request) {
	var req seatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.ctrl.RecordExpulsion(r.PathValue("id"), req.Seat); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetSheriff(w http.ResponseWriter, r *http.Request) {
	var req seatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.ctrl.SetSheriff(r.PathValue("id"), req.Seat); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWait blocks until the room's phase changes, the judge advances it, or
// the client hangs up. Lets thin clients long-poll instead of holding a socket.
func (a *API) handleWait(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.ctrl.WaitPhaseAdvance(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	room, err := a.ctrl.Room(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Routes registers all endpoints on mux, wrapping each with the request
// logger when extended logging is enabled. WebSocket upgrades skip the
// logging wrapper since the recorder cannot replay a hijacked connection.
func (a *API) Routes(mux *http.ServeMux) {
	handle := func(pattern string, handler http.HandlerFunc) {
		var h http.Handler = handler
		if a.log != nil && a.log.logRequests {
			h = &LoggingHandler{Handler: h, Logger: a.log}
		}
		mux.Handle(pattern, h)
	}

	handle("POST /rooms", a.handleCreateRoom)
	handle("GET /rooms/{id}", a.handleGetRoom)
	handle("POST /rooms/{id}/start", a.handleStartGame)
	handle("POST /rooms/{id}/advance", a.handleAdvance)
	handle("POST /rooms/{id}/actions", a.handleSubmitAction)
	handle("GET /rooms/{id}/actions", a.handleAvailableActions)
	handle("POST /rooms/{id}/expel", a.handleExpel)
	handle("POST /rooms/{id}/sheriff", a.handleSetSheriff)
	handle("GET /rooms/{id}/wait", a.handleWait)
	mux.HandleFunc("GET /rooms/{id}/ws", a.hub.HandleWebSocket)
}
