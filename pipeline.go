package main

import (
	"fmt"
	"slices"
)

// Pipeline resolves the actions queued during a phase into a final
// cause-of-death map. Resolution is deterministic: the same pending queue
// against the same room always yields the same wave.
type Pipeline struct {
	reg *Registry
	log *AppLogger
}

func NewPipeline(reg *Registry, log *AppLogger) *Pipeline {
	return &Pipeline{reg: reg, log: log}
}

// Resolve folds the pending queue through each action's Execute in priority
// order (ties keep submission order), then runs the death resolution stage.
// Individual execute errors are collected, not fatal.
func (p *Pipeline) Resolve(r *Room) map[DeathCause][]int {
	pending := slices.Clone(r.Scratch.Pending)
	slices.SortStableFunc(pending, func(a, b ActionInstance) int {
		pa, pb := p.priorityOf(a.ActionID), p.priorityOf(b.ActionID)
		return pa - pb
	})

	acc := newAccumulation()
	for _, inst := range pending {
		action, ok := p.reg.Get(inst.ActionID)
		if !ok {
			acc.Errors = append(acc.Errors, fmt.Errorf("unknown action %q in pending queue", inst.ActionID))
			continue
		}
		// A feared seat loses its own abilities for the night.
		if acc.FearedSeat != 0 && acc.FearedSeat == inst.Actor && inst.ActionID != ActionNightmareFear {
			p.log.Debug("pipeline: seat %d action %s voided by fear", inst.Actor, inst.ActionID)
			continue
		}
		if err := action.Execute(r, inst, acc); err != nil {
			p.log.Debug("pipeline: %s by seat %d: %v", inst.ActionID, inst.Actor, err)
			acc.Errors = append(acc.Errors, err)
			continue
		}
		r.Scratch.recordExecution(r.Day, inst.ActionID, inst.Actor)
	}

	p.noteSkippedCompulsory(r)
	return p.finalizeDeaths(r, acc)
}

// noteSkippedCompulsory records every compulsory ability that was open this
// phase but never submitted. The absence is part of the night's record.
func (p *Pipeline) noteSkippedCompulsory(r *Room) {
	for _, action := range p.reg.All() {
		id := action.ID()
		if action.Optional() || !timingMatches(action.Timing(), r.Phase) {
			continue
		}
		if len(r.Scratch.PhaseActions[id]) > 0 {
			continue
		}
		for _, seat := range r.AliveSeats() {
			if !seatMayUse(r, seat, id) {
				continue
			}
			if action.TargetCount() > 0 && len(action.EligibleTargets(r, seat)) == 0 {
				continue
			}
			r.appendHistory("night %d: seat %d left a compulsory ability unused: %s", r.Day, seat, id)
			p.log.Debug("pipeline: seat %d skipped compulsory %s", seat, id)
		}
	}
}

func (p *Pipeline) priorityOf(actionID string) int {
	if a, ok := p.reg.Get(actionID); ok {
		return a.Priority()
	}
	return priorityDeathResolution
}

// finalizeDeaths is the pinned last stage of resolution. Order matters:
//  1. wolf victims who were both saved and protected die of double
//     protection instead
//  2. saved seats walk away from every other cause
//  3. protection blocks the knife, and only the knife
//  4. the linked sleepwalker is untouchable tonight, except by the dream
//     itself; a dying dream weaver takes the sleepwalker along
func (p *Pipeline) finalizeDeaths(r *Room, acc *Accumulation) map[DeathCause][]int {
	var doubleProtected []int
	for _, v := range acc.wolfVictims() {
		if slices.Contains(acc.Saved, v) && acc.Protected[v] {
			doubleProtected = append(doubleProtected, v)
		}
	}

	for _, saved := range acc.Saved {
		for _, cause := range causeOrder {
			acc.removeDeath(cause, saved)
		}
	}
	for protected := range acc.Protected {
		acc.removeDeath(CauseWerewolf, protected)
	}
	for _, v := range doubleProtected {
		acc.addDeath(CauseDoubleProtection, v)
	}

	if acc.Sleepwalker != 0 {
		for _, cause := range causeOrder {
			if cause == CauseDreamWeaver {
				continue
			}
			acc.removeDeath(cause, acc.Sleepwalker)
		}
		weaver := r.SeatWithRole(RoleDreamWeaver)
		if weaver != 0 && seatDiesIn(acc.Deaths, weaver) {
			acc.addDeath(CauseDreamWeaver, acc.Sleepwalker)
		}
	}

	wave := make(map[DeathCause][]int)
	for _, cause := range causeOrder {
		victims := acc.Deaths[cause]
		if len(victims) == 0 {
			continue
		}
		victims = slices.Clone(victims)
		slices.Sort(victims)
		wave[cause] = victims
	}
	return wave
}

// seatDiesIn reports whether the seat appears under any cause.
func seatDiesIn(deaths map[DeathCause][]int, seat int) bool {
	for _, victims := range deaths {
		if slices.Contains(victims, seat) {
			return true
		}
	}
	return false
}

// waveVictims flattens a wave into its victim seats in cause order, each
// seat once.
func waveVictims(wave map[DeathCause][]int) []int {
	var out []int
	for _, cause := range causeOrder {
		for _, v := range wave[cause] {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// waveCause returns the first cause a seat dies under, in cause order.
func waveCause(wave map[DeathCause][]int, seat int) DeathCause {
	for _, cause := range causeOrder {
		if slices.Contains(wave[cause], seat) {
			return cause
		}
	}
	return CauseUnknown
}
