package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Structural submission errors, checked in a fixed order before the
// action's own Validate runs.
var (
	errUnknownAction      = errors.New("unknown action")
	errUnknownSeat        = errors.New("no such seat")
	errNotYourAbility     = errors.New("seat does not hold this ability")
	errActorDead          = errors.New("actor is dead")
	errWrongPhase         = errors.New("action not available in this phase")
	errTargetArity        = errors.New("wrong number of targets")
	errTargetDead         = errors.New("target is dead")
	errUsageExhausted     = errors.New("no uses left")
	errDuplicateThisPhase = errors.New("action already submitted this phase")
	errAlreadySubmitted   = errors.New("seat already acted this phase")
)

// Engine validates and accepts action submissions for a room. Immediate
// actions are executed on the spot; everything else queues for the phase's
// resolution.
type Engine struct {
	reg *Registry
	log *AppLogger
}

func NewEngine(reg *Registry, log *AppLogger) *Engine {
	return &Engine{reg: reg, log: log}
}

// timingMatches reports whether the action window is open in the phase.
func timingMatches(t Timing, phase Phase) bool {
	switch t {
	case TimingNight:
		return phase == PhaseNight
	case TimingDay:
		return phase == PhaseDay || phase == PhaseSpeech || phase == PhaseVoting
	case TimingDeathTrigger:
		return phase == PhaseDeathAnnouncement
	case TimingAnytime:
		return phase != PhaseSetup
	}
	return false
}

// SubmitAction validates the instance and either queues or executes it.
// The returned instance carries the assigned id and sequence number.
func (e *Engine) SubmitAction(r *Room, inst ActionInstance) (ActionInstance, error) {
	action, ok := e.reg.Get(inst.ActionID)
	if !ok {
		return inst, fmt.Errorf("%w: %s", errUnknownAction, inst.ActionID)
	}

	seat := r.Seat(inst.Actor)
	if seat == nil {
		return inst, fmt.Errorf("%w: %d", errUnknownSeat, inst.Actor)
	}
	// A dead seat may still fire an ability that was granted to it on
	// death (revenge shots, a merchant gun clutched on the way down).
	if !seat.Alive() && !r.Scratch.hasBonus(inst.Actor, inst.ActionID) {
		return inst, errActorDead
	}
	if !seatMayUse(r, inst.Actor, inst.ActionID) {
		return inst, errNotYourAbility
	}

	if !timingMatches(action.Timing(), r.Phase) {
		return inst, fmt.Errorf("%w: %s in %s", errWrongPhase, inst.ActionID, r.Phase)
	}
	if len(inst.Targets) != action.TargetCount() {
		return inst, fmt.Errorf("%w: %s wants %d", errTargetArity, inst.ActionID, action.TargetCount())
	}
	for _, t := range inst.Targets {
		ts := r.Seat(t)
		if ts == nil {
			return inst, fmt.Errorf("%w: %d", errUnknownSeat, t)
		}
		if action.RequiresAliveTarget() && !ts.Alive() {
			return inst, fmt.Errorf("%w: %d", errTargetDead, t)
		}
	}

	if limit := action.UsageLimit(); limit >= 0 && r.Scratch.usageCount(inst.ActionID, inst.Actor) >= limit {
		return inst, errUsageExhausted
	}
	if !action.AllowMultiplePerPhase() && len(r.Scratch.PhaseActions[inst.ActionID]) > 0 {
		return inst, errDuplicateThisPhase
	}
	// One submission per seat per phase. Judges speak for the whole table
	// and bypass the latch.
	if inst.Source == SourcePlayer && r.Scratch.Submitted[inst.Actor] {
		return inst, errAlreadySubmitted
	}

	if err := action.Validate(r, inst); err != nil {
		return inst, err
	}

	inst.ID = uuid.NewString()
	inst.Seq = len(r.Scratch.Executed) + len(r.Scratch.Pending)

	if action.Immediate() {
		if err := e.executeImmediate(r, action, inst); err != nil {
			return inst, err
		}
	} else {
		r.Scratch.Pending = append(r.Scratch.Pending, inst)
	}

	r.Scratch.PhaseActions[inst.ActionID] = append(r.Scratch.PhaseActions[inst.ActionID], inst.Actor)
	if inst.Source == SourcePlayer {
		r.Scratch.Submitted[inst.Actor] = true
	}
	action.OnSubmitted(r, inst)
	e.log.Debug("engine: room %s accepted %s by seat %d (source=%s)", r.ID, inst.ActionID, inst.Actor, inst.Source)
	return inst, nil
}

// executeImmediate runs the action now and parks the resulting deaths in
// the trigger queue for the announcement loop to pick up.
func (e *Engine) executeImmediate(r *Room, action RoleAction, inst ActionInstance) error {
	acc := newAccumulation()
	if err := action.Execute(r, inst, acc); err != nil {
		return err
	}
	r.Scratch.recordExecution(r.Day, inst.ActionID, inst.Actor)
	for _, cause := range causeOrder {
		for _, v := range acc.Deaths[cause] {
			r.Scratch.TriggerDeaths[cause] = append(r.Scratch.TriggerDeaths[cause], v)
		}
	}
	return nil
}

// AvailableAction is one entry in a seat's current menu.
type AvailableAction struct {
	ActionID string `json:"action_id"`
	Targets  []int  `json:"targets"`
	Optional bool   `json:"optional"`
}

// fearedThisNight reports whether a fear naming the seat is in play
// tonight, resolved into history or still pending.
func fearedThisNight(r *Room, seat int) bool {
	if r.Scratch.FearHistory[r.Day] == seat {
		return true
	}
	for _, inst := range r.Scratch.Pending {
		if inst.ActionID == ActionNightmareFear && len(inst.Targets) == 1 && inst.Targets[0] == seat {
			return true
		}
	}
	return false
}

// AvailableActions lists what the seat could legally submit right now.
func (e *Engine) AvailableActions(r *Room, seatNum int) []AvailableAction {
	seat := r.Seat(seatNum)
	if seat == nil {
		return nil
	}
	// A feared seat loses its own night abilities. Fear on a pack seat
	// freezes the pack kill at resolution instead, so the menu stays.
	if r.Phase == PhaseNight && fearedThisNight(r, seatNum) && !r.isWolfSeat(seatNum) {
		return nil
	}
	var out []AvailableAction
	for _, action := range e.reg.All() {
		id := action.ID()
		if !seatMayUse(r, seatNum, id) {
			continue
		}
		if !seat.Alive() && !r.Scratch.hasBonus(seatNum, id) {
			continue
		}
		if !timingMatches(action.Timing(), r.Phase) {
			continue
		}
		if limit := action.UsageLimit(); limit >= 0 && r.Scratch.usageCount(id, seatNum) >= limit {
			continue
		}
		if !action.AllowMultiplePerPhase() && len(r.Scratch.PhaseActions[id]) > 0 {
			continue
		}
		targets := action.EligibleTargets(r, seatNum)
		if action.TargetCount() > 0 && len(targets) == 0 {
			continue
		}
		out = append(out, AvailableAction{ActionID: id, Targets: targets, Optional: action.Optional()})
	}
	return out
}
