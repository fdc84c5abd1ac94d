package main

import (
	"context"
	"errors"
	"time"
)

var (
	errGameNotInSetup = errors.New("game already started")
	errGameOver       = errors.New("game is over")
	errBadPhase       = errors.New("operation not valid in this phase")
)

// PhaseDurations are the countdowns per phase. A zero duration means the
// phase waits for a manual judge advance.
type PhaseDurations struct {
	Night             time.Duration
	Day               time.Duration
	SheriffElection   time.Duration
	DeathAnnouncement time.Duration
	Speech            time.Duration
	Voting            time.Duration
}

func defaultDurations() PhaseDurations {
	return PhaseDurations{
		Night:             2 * time.Minute,
		Day:               30 * time.Second,
		SheriffElection:   3 * time.Minute,
		DeathAnnouncement: time.Minute,
		Speech:            5 * time.Minute,
		Voting:            2 * time.Minute,
	}
}

func (pd PhaseDurations) of(p Phase) time.Duration {
	switch p {
	case PhaseNight:
		return pd.Night
	case PhaseDay:
		return pd.Day
	case PhaseSheriffElection:
		return pd.SheriffElection
	case PhaseDeathAnnouncement:
		return pd.DeathAnnouncement
	case PhaseSpeech:
		return pd.Speech
	case PhaseVoting:
		return pd.Voting
	}
	return 0
}

// StateMachine owns the game flow of a room: which phase follows which,
// what happens on the way in and out of each, and when the game ends.
type StateMachine struct {
	pipeline  *Pipeline
	orch      *Orchestrator
	clock     Clock
	hub       Broadcaster
	narrator  Narrator // nil disables flavor text
	durations PhaseDurations
	log       *AppLogger
}

func NewStateMachine(pipeline *Pipeline, orch *Orchestrator, clock Clock, hub Broadcaster, narrator Narrator, durations PhaseDurations, log *AppLogger) *StateMachine {
	return &StateMachine{
		pipeline:  pipeline,
		orch:      orch,
		clock:     clock,
		hub:       hub,
		narrator:  narrator,
		durations: durations,
		log:       log,
	}
}

// StartGame moves a room out of setup into the first night.
func (sm *StateMachine) StartGame(ctx context.Context, r *Room) error {
	if r.Phase != PhaseSetup {
		return errGameNotInSetup
	}
	r.Day = 1
	r.appendHistory("the village falls asleep for the first night")
	sm.enter(ctx, r, PhaseNight)
	return nil
}

// Advance moves the room to the next phase: night outcome resolution on
// the way out of night, the death announcement loop on the way into the
// announcement, the expulsion on the way out of voting. The sheriff
// election only exists on day one.
func (sm *StateMachine) Advance(ctx context.Context, r *Room) error {
	if r.Winner != "" {
		return errGameOver
	}
	if r.Phase == PhaseSetup {
		return sm.StartGame(ctx, r)
	}

	sm.leave(ctx, r)
	if r.Winner != "" {
		return nil
	}
	sm.enter(ctx, r, sm.next(r))
	return nil
}

func (sm *StateMachine) next(r *Room) Phase {
	switch r.Phase {
	case PhaseNight:
		return PhaseDay
	case PhaseDay:
		if r.Day == 1 {
			return PhaseSheriffElection
		}
		return PhaseDeathAnnouncement
	case PhaseSheriffElection:
		return PhaseDeathAnnouncement
	case PhaseDeathAnnouncement:
		return PhaseSpeech
	case PhaseSpeech:
		return PhaseVoting
	case PhaseVoting:
		return PhaseNight
	}
	return PhaseNight
}

// leave runs the outgoing phase's end-of-phase work.
func (sm *StateMachine) leave(ctx context.Context, r *Room) {
	switch r.Phase {
	case PhaseNight:
		r.Scratch.NightWave = sm.pipeline.Resolve(r)
	case PhaseVoting:
		if seat := r.Scratch.ExpelSeat; seat != 0 {
			records := sm.orch.ResolveWave(ctx, r, map[DeathCause][]int{CauseExpel: {seat}})
			sm.announce(ctx, r, records)
			sm.checkWinner(r)
		}
		// next phase is a new night
		r.Day++
	}
}

// enter transitions into the phase: scratch reset, on-start work, deadline.
func (sm *StateMachine) enter(ctx context.Context, r *Room, p Phase) {
	if p == PhaseNight {
		r.Scratch.resetNight()
	} else {
		r.Scratch.resetPhase()
	}
	r.Phase = p
	if d := sm.durations.of(p); d > 0 {
		r.PhaseEndsAt = sm.clock.Now().Add(d)
	} else {
		r.PhaseEndsAt = time.Time{}
	}

	switch p {
	case PhaseDeathAnnouncement:
		wave := r.Scratch.NightWave
		r.Scratch.NightWave = nil
		records := sm.orch.ResolveWave(ctx, r, wave)
		if len(records) == 0 {
			r.appendHistory("day %d: a peaceful night, nobody died", r.Day)
		}
		sm.announce(ctx, r, records)
		sm.checkWinner(r)
	}

	sm.log.Debug("statemachine: room %s entered %s (day %d)", r.ID, p, r.Day)
	sm.hub.Publish(r.ID, "phase_changed", map[string]any{
		"phase":   p,
		"day":     r.Day,
		"ends_at": r.PhaseEndsAt,
	})
}

// ProcessTriggers drains deaths queued by immediate actions outside the
// announcement entry (a revenge shot submitted mid-announcement, a gun
// fired during a speech).
func (sm *StateMachine) ProcessTriggers(ctx context.Context, r *Room) {
	records := sm.orch.DrainTriggers(ctx, r)
	if len(records) == 0 {
		return
	}
	sm.announce(ctx, r, records)
	sm.checkWinner(r)
}

// RecordExpulsion stores the voting verdict; the death happens when the
// voting phase ends.
func (sm *StateMachine) RecordExpulsion(r *Room, seat int) error {
	if r.Phase != PhaseVoting {
		return errBadPhase
	}
	s := r.Seat(seat)
	if s == nil {
		return errUnknownSeat
	}
	if !s.Alive() {
		return errTargetDead
	}
	r.Scratch.ExpelSeat = seat
	return nil
}

// SetSheriff pins the badge, normally at the end of the day-one election.
func (sm *StateMachine) SetSheriff(r *Room, seat int) error {
	s := r.Seat(seat)
	if s == nil {
		return errUnknownSeat
	}
	if !s.Alive() {
		return errTargetDead
	}
	for _, other := range r.Seats {
		other.Sheriff = false
	}
	s.Sheriff = true
	r.appendHistory("day %d: seat %d pinned the badge", r.Day, seat)
	return nil
}

func (sm *StateMachine) announce(ctx context.Context, r *Room, records []DeathRecord) {
	sm.hub.Publish(r.ID, "deaths_announced", map[string]any{
		"day":    r.Day,
		"deaths": records,
	})
	if sm.narrator != nil && len(records) > 0 {
		streamNarration(ctx, sm.narrator, sm.hub, r.ID, append([]string(nil), r.History...))
	}
}

func (sm *StateMachine) checkWinner(r *Room) {
	if r.Winner != "" {
		return
	}
	winner := r.EvaluateWinner()
	if winner == "" {
		return
	}
	r.Winner = winner
	r.appendHistory("the game is over: the %s camp wins", winner)
	sm.log.Debug("statemachine: room %s won by %s", r.ID, winner)
	sm.hub.Publish(r.ID, "game_over", map[string]any{"winner": winner})
}
