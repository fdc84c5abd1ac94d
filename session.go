package main

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var errWaitOutstanding = errors.New("a phase-advance wait is already outstanding for this room")

// saveRetries bounds the reload-and-retry loop on a stale optimistic save.
const saveRetries = 3

// SessionManager serializes access to each room: one mutex per room, every
// mutation loaded fresh from the store and saved back under the lock. The
// optimistic generation check still runs underneath so a second process
// sharing the database cannot silently clobber state.
type SessionManager struct {
	store RoomStore
	clock Clock
	log   *AppLogger

	mu       sync.Mutex
	sessions map[string]*roomSession
}

type roomSession struct {
	mu sync.Mutex // room mutation lock

	stateMu sync.Mutex // guards the fields below
	timer   Timer
	waiting bool
	advance chan struct{}
}

func NewSessionManager(store RoomStore, clock Clock, log *AppLogger) *SessionManager {
	return &SessionManager{
		store:    store,
		clock:    clock,
		log:      log,
		sessions: make(map[string]*roomSession),
	}
}

func (m *SessionManager) session(id string) *roomSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &roomSession{}
		m.sessions[id] = s
	}
	return s
}

// WithRoom runs fn against the loaded room under the room lock and saves
// the result. A stale save reloads and reruns fn against current state.
func (m *SessionManager) WithRoom(id string, fn func(r *Room) error) error {
	s := m.session(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		r, err := m.store.Load(id)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		err = m.store.Save(r)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStaleRoom) || attempt >= saveRetries {
			return err
		}
		m.log.Debug("session: room %s stale at gen %d, retrying", id, r.Generation)
	}
}

// WaitPhaseAdvance blocks until the room's phase advances or ctx expires.
// Only one wait may be outstanding per room; a second concurrent call is
// an error rather than a silent double-wake.
func (m *SessionManager) WaitPhaseAdvance(ctx context.Context, id string) error {
	s := m.session(id)

	s.stateMu.Lock()
	if s.waiting {
		s.stateMu.Unlock()
		return errWaitOutstanding
	}
	s.waiting = true
	s.advance = make(chan struct{})
	ch := s.advance
	s.stateMu.Unlock()

	defer func() {
		s.stateMu.Lock()
		s.waiting = false
		s.advance = nil
		s.stateMu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// signalAdvance wakes the outstanding waiter, if any.
func (m *SessionManager) signalAdvance(id string) {
	s := m.session(id)
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.waiting && s.advance != nil {
		close(s.advance)
		s.advance = nil
		s.waiting = false
	}
}

// armTimer replaces the room's phase timer with the one start produces.
// The old timer is stopped first; stopping twice is harmless.
func (m *SessionManager) armTimer(id string, start func() Timer) {
	s := m.session(id)
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if start != nil {
		s.timer = start()
	}
}

// cancelTimer stops any armed phase timer for the room.
func (m *SessionManager) cancelTimer(id string) {
	m.armTimer(id, nil)
}

// Controller is the top-level per-room orchestration: it owns the session
// manager, the submission engine, and the state machine, and keeps the
// phase timers honest across manual and automatic advances.
type Controller struct {
	sessions *SessionManager
	engine   *Engine
	sm       *StateMachine
	clock    Clock
	hub      Broadcaster
	log      *AppLogger
}

func NewController(sessions *SessionManager, engine *Engine, sm *StateMachine, clock Clock, hub Broadcaster, log *AppLogger) *Controller {
	return &Controller{
		sessions: sessions,
		engine:   engine,
		sm:       sm,
		clock:    clock,
		hub:      hub,
		log:      log,
	}
}

// CreateRoom persists a fresh table in the setup phase and returns it.
func (c *Controller) CreateRoom(seatRoles [][]string, settings RoomSettings) (*Room, error) {
	r := NewRoom(uuid.NewString(), seatRoles, settings)
	if err := c.sessions.store.Create(r); err != nil {
		return nil, err
	}
	c.log.Debug("controller: created room %s with %d seats", r.ID, len(r.Seats))
	return r, nil
}

// Room returns a read-only snapshot.
func (c *Controller) Room(id string) (*Room, error) {
	return c.sessions.store.Load(id)
}

// StartGame begins the first night and arms its countdown.
func (c *Controller) StartGame(ctx context.Context, id string) error {
	err := c.sessions.WithRoom(id, func(r *Room) error {
		return c.sm.StartGame(ctx, r)
	})
	if err != nil {
		return err
	}
	c.rearm(id)
	return nil
}

// Advance moves the room to the next phase (judge override or timer) and
// wakes anyone blocked on the transition.
func (c *Controller) Advance(ctx context.Context, id string) error {
	err := c.sessions.WithRoom(id, func(r *Room) error {
		return c.sm.Advance(ctx, r)
	})
	if err != nil {
		return err
	}
	c.sessions.signalAdvance(id)
	c.rearm(id)
	return nil
}

// Submit validates and applies one action submission. Immediate actions
// may produce deaths; those cascade before the save.
func (c *Controller) Submit(ctx context.Context, id string, inst ActionInstance) (ActionInstance, error) {
	var accepted ActionInstance
	err := c.sessions.WithRoom(id, func(r *Room) error {
		var err error
		accepted, err = c.engine.SubmitAction(r, inst)
		if err != nil {
			return err
		}
		c.sm.ProcessTriggers(ctx, r)
		return nil
	})
	if err != nil {
		return accepted, err
	}
	c.hub.Publish(id, "action_accepted", map[string]any{
		"action_id": accepted.ActionID,
		"actor":     accepted.Actor,
	})
	return accepted, nil
}

// AvailableActions lists the seat's current menu.
func (c *Controller) AvailableActions(id string, seat int) ([]AvailableAction, error) {
	var out []AvailableAction
	r, err := c.sessions.store.Load(id)
	if err != nil {
		return nil, err
	}
	out = c.engine.AvailableActions(r, seat)
	return out, nil
}

// RecordExpulsion stores the voting verdict for the current voting phase.
func (c *Controller) RecordExpulsion(id string, seat int) error {
	return c.sessions.WithRoom(id, func(r *Room) error {
		return c.sm.RecordExpulsion(r, seat)
	})
}

// SetSheriff pins the badge on a seat.
func (c *Controller) SetSheriff(id string, seat int) error {
	return c.sessions.WithRoom(id, func(r *Room) error {
		return c.sm.SetSheriff(r, seat)
	})
}

// WaitPhaseAdvance exposes the cooperative wait for judge tooling.
func (c *Controller) WaitPhaseAdvance(ctx context.Context, id string) error {
	return c.sessions.WaitPhaseAdvance(ctx, id)
}

// rearm reads the freshly saved deadline and arms (or cancels) the phase
// timer. The timer drives an automatic Advance when it fires.
func (c *Controller) rearm(id string) {
	r, err := c.sessions.store.Load(id)
	if err != nil {
		c.log.Debug("controller: rearm load %s: %v", id, err)
		return
	}
	if r.Winner != "" || r.PhaseEndsAt.IsZero() {
		c.sessions.cancelTimer(id)
		return
	}
	d := r.PhaseEndsAt.Sub(c.clock.Now())
	if d <= 0 {
		c.sessions.cancelTimer(id)
		return
	}
	c.sessions.armTimer(id, func() Timer {
		return c.clock.AfterFunc(d, func() {
			if err := c.Advance(context.Background(), id); err != nil {
				c.log.Debug("controller: timer advance %s: %v", id, err)
			}
		})
	})
}
