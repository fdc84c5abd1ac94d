package main

import (
	"context"
	"time"
)

// DeathRecord is one announced death.
type DeathRecord struct {
	Day   int        `json:"day"`
	Seat  int        `json:"seat"`
	Role  string     `json:"role"`
	Cause DeathCause `json:"cause"`
	Final bool       `json:"final"` // false while another identity survives
}

// Collaborators are the judge-side flows the announcement loop hands off
// to: the dying player's last words and the sheriff badge transfer. Both
// run under a deadline so a stalled flow cannot wedge the room.
type Collaborators interface {
	LastWords(ctx context.Context, r *Room, seat int) error
	// OfficerTransfer returns the seat inheriting the badge, or 0 when the
	// badge is torn up / decided later by the judge.
	OfficerTransfer(ctx context.Context, r *Room, from int) (int, error)
}

// broadcastCollaborators is the default implementation: it announces the
// flow over the hub and leaves the human part to the table.
type broadcastCollaborators struct {
	hub Broadcaster
}

func NewBroadcastCollaborators(hub Broadcaster) Collaborators {
	return &broadcastCollaborators{hub: hub}
}

func (c *broadcastCollaborators) LastWords(_ context.Context, r *Room, seat int) error {
	c.hub.Publish(r.ID, "last_words", map[string]any{"seat": seat})
	return nil
}

func (c *broadcastCollaborators) OfficerTransfer(_ context.Context, r *Room, from int) (int, error) {
	c.hub.Publish(r.ID, "officer_transfer", map[string]any{"from": from})
	return 0, nil
}

// Orchestrator drives the announcement-time death cascade: marking seats
// dead, firing death hooks, offering last words, moving the badge, and
// folding in any deaths produced by dying shots along the way.
type Orchestrator struct {
	reg         *Registry
	collab      Collaborators
	hookTimeout time.Duration
	log         *AppLogger
}

func NewOrchestrator(reg *Registry, collab Collaborators, hookTimeout time.Duration, log *AppLogger) *Orchestrator {
	if hookTimeout <= 0 {
		hookTimeout = 30 * time.Second
	}
	return &Orchestrator{reg: reg, collab: collab, hookTimeout: hookTimeout, log: log}
}

// ResolveWave announces one wave of deaths, then drains any trigger deaths
// queued while it ran. Every seat is processed at most once per cascade
// cycle; the set resets at the start of each cycle so a later shot can still
// take a seat's surviving identity.
func (o *Orchestrator) ResolveWave(ctx context.Context, r *Room, wave map[DeathCause][]int) []DeathRecord {
	r.Scratch.ProcessedDeaths = make(map[int]bool)
	records := o.process(ctx, r, wave)
	records = append(records, o.drain(ctx, r)...)
	return records
}

// DrainTriggers processes deaths parked by immediate actions (revenge
// shots, the merchant's gun) as its own cascade cycle.
func (o *Orchestrator) DrainTriggers(ctx context.Context, r *Room) []DeathRecord {
	r.Scratch.ProcessedDeaths = make(map[int]bool)
	return o.drain(ctx, r)
}

// drain loops until the trigger queue is empty; each drained wave can queue
// more.
func (o *Orchestrator) drain(ctx context.Context, r *Room) []DeathRecord {
	var records []DeathRecord
	for len(r.Scratch.TriggerDeaths) > 0 {
		wave := r.Scratch.TriggerDeaths
		r.Scratch.TriggerDeaths = make(map[DeathCause][]int)
		records = append(records, o.process(ctx, r, wave)...)
	}
	return records
}

func (o *Orchestrator) process(ctx context.Context, r *Room, wave map[DeathCause][]int) []DeathRecord {
	var records []DeathRecord
	for _, seatNum := range waveVictims(wave) {
		if r.Scratch.ProcessedDeaths[seatNum] {
			continue
		}
		seat := r.Seat(seatNum)
		if seat == nil || !seat.Alive() {
			continue
		}
		r.Scratch.ProcessedDeaths[seatNum] = true

		cause := waveCause(wave, seatNum)
		diedRole := seat.markDead("")
		final := !seat.Alive()
		rec := DeathRecord{Day: r.Day, Seat: seatNum, Role: diedRole, Cause: cause, Final: final}
		records = append(records, rec)
		r.appendHistory("day %d: seat %d (%s) died: %s", r.Day, seatNum, diedRole, cause)
		o.log.Debug("orchestrator: room %s seat %d (%s) died of %s (final=%v)", r.ID, seatNum, diedRole, cause, final)

		// Death hooks grant or confiscate bonus abilities.
		o.reg.runDeathHooks(r, seatNum, diedRole, cause)

		if !final {
			// The seat's other identity plays on; nothing to announce.
			continue
		}

		// Last words open only on the first announcement, and always after
		// an expulsion.
		if r.Day == 1 || cause == CauseExpel {
			o.runLastWords(ctx, r, seatNum)
		}
		// The badge moves whenever the sheriff dies, any day.
		if seat.Sheriff {
			seat.Sheriff = false
			o.runOfficerTransfer(ctx, r, seatNum)
		}
	}
	return records
}

func (o *Orchestrator) runLastWords(ctx context.Context, r *Room, seat int) {
	ctx, cancel := context.WithTimeout(ctx, o.hookTimeout)
	defer cancel()
	if err := o.collab.LastWords(ctx, r, seat); err != nil {
		o.log.Debug("orchestrator: last words for seat %d: %v", seat, err)
	}
}

func (o *Orchestrator) runOfficerTransfer(ctx context.Context, r *Room, from int) {
	ctx, cancel := context.WithTimeout(ctx, o.hookTimeout)
	defer cancel()
	heir, err := o.collab.OfficerTransfer(ctx, r, from)
	if err != nil {
		o.log.Debug("orchestrator: officer transfer from seat %d: %v", from, err)
		return
	}
	if heir != 0 {
		if s := r.Seat(heir); s != nil && s.Alive() {
			s.Sheriff = true
			r.appendHistory("day %d: the badge passed from seat %d to seat %d", r.Day, from, heir)
		}
	}
}
