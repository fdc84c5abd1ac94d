package main

import (
	"errors"
	"slices"
)

// Action-specific validation errors. The API layer maps these to 4xx
// responses; tests assert on them directly.
var (
	errWolfSelfKill    = errors.New("wolves cannot target the pack under current settings")
	errCannotSelfKnife = errors.New("the nightmare cannot be put under the knife")
	errFearSelf        = errors.New("the nightmare cannot fear itself")
	errFearRepeat      = errors.New("cannot fear the same seat two nights running")
	errGuardRepeat     = errors.New("cannot protect the same seat two nights running")
	errWitchSelfSave   = errors.New("the witch may not save herself at this table")
	errAntidoteMissed  = errors.New("antidote target was not under the knife")
	errTradeDone       = errors.New("the merchant has already traded this game")
	errTradeSelf       = errors.New("the merchant cannot trade with itself")
	errBrotherWindow   = errors.New("the extra kill is only open the night after the elder died")
)

// ---------------------------------------------------------------------------
// Wolf pack

type werewolfKill struct{ actionMeta }

func newWerewolfKill() *werewolfKill {
	return &werewolfKill{actionMeta{
		id:            ActionWerewolfKill,
		priority:      priorityWerewolfKill,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    -1,
		requiresAlive: true,
		optional:      true,
	}}
}

// packTargets is shared by the pack kill and the younger brother's extra
// kill: living seats, minus pack seats unless self-kill is allowed, minus
// the nightmare always.
func packTargets(r *Room) []int {
	var out []int
	nightmare := r.SeatWithRole(RoleNightmare)
	for _, n := range r.AliveSeats() {
		if n == nightmare {
			continue
		}
		if r.isWolfSeat(n) && !r.Settings.AllowWolfSelfKill {
			continue
		}
		out = append(out, n)
	}
	return out
}

func validatePackTarget(r *Room, target int) error {
	if target == r.SeatWithRole(RoleNightmare) {
		return errCannotSelfKnife
	}
	if r.isWolfSeat(target) && !r.Settings.AllowWolfSelfKill {
		return errWolfSelfKill
	}
	return nil
}

func (a *werewolfKill) EligibleTargets(r *Room, _ int) []int { return packTargets(r) }

func (a *werewolfKill) Validate(r *Room, inst ActionInstance) error {
	return validatePackTarget(r, inst.Targets[0])
}

func (a *werewolfKill) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	if acc.WolfKillSuppressed {
		r.appendHistory("night %d: the pack was paralyzed by fear and did not strike", r.Day)
		return nil
	}
	acc.addDeath(CauseWerewolf, inst.Targets[0])
	return nil
}

type wolfBrotherKill struct{ actionMeta }

func newWolfBrotherKill() *wolfBrotherKill {
	return &wolfBrotherKill{actionMeta{
		id:            ActionWolfBrotherKill,
		priority:      priorityWolfBrotherKill,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    1,
		requiresAlive: true,
		// the extra kill must be used or lost; its window never reopens
		optional: false,
	}}
}

func (a *wolfBrotherKill) EligibleTargets(r *Room, _ int) []int {
	if !a.windowOpen(r) {
		return nil
	}
	return packTargets(r)
}

func (a *wolfBrotherKill) windowOpen(r *Room) bool {
	return r.Scratch.WolfBrotherDiedDay != 0 && r.Scratch.WolfBrotherDiedDay == r.Day-1
}

func (a *wolfBrotherKill) Validate(r *Room, inst ActionInstance) error {
	if !a.windowOpen(r) {
		return errBrotherWindow
	}
	return validatePackTarget(r, inst.Targets[0])
}

func (a *wolfBrotherKill) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	if acc.WolfKillSuppressed {
		return nil
	}
	acc.addDeath(CauseWerewolf, inst.Targets[0])
	return nil
}

// OnDeath records when the elder brother fell so the younger's window can
// open the following night.
func (a *wolfBrotherKill) OnDeath(r *Room, _ int, diedRole string, _ DeathCause) {
	if diedRole == RoleWolfElder {
		r.Scratch.WolfBrotherDiedDay = r.Day
	}
}

type nightmareFear struct{ actionMeta }

func newNightmareFear() *nightmareFear {
	return &nightmareFear{actionMeta{
		id:            ActionNightmareFear,
		priority:      priorityNightmareFear,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    -1,
		requiresAlive: true,
		optional:      true,
	}}
}

func (a *nightmareFear) EligibleTargets(r *Room, actor int) []int {
	return aliveExcept(r, actor, r.Scratch.FearHistory[r.Day-1])
}

func (a *nightmareFear) Validate(r *Room, inst ActionInstance) error {
	if inst.Targets[0] == inst.Actor {
		return errFearSelf
	}
	if prev, ok := r.Scratch.FearHistory[r.Day-1]; ok && prev == inst.Targets[0] {
		return errFearRepeat
	}
	return nil
}

func (a *nightmareFear) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	target := inst.Targets[0]
	r.Scratch.FearHistory[r.Day] = target
	if r.isWolfSeat(target) {
		// Fearing a packmate freezes the whole pack for the night.
		acc.WolfKillSuppressed = true
		r.appendHistory("night %d: fear rippled through the pack itself", r.Day)
		return nil
	}
	acc.FearedSeat = target
	r.appendHistory("night %d: seat %d was gripped by fear", r.Day, target)
	return nil
}

// ---------------------------------------------------------------------------
// Deities

type guardProtect struct{ actionMeta }

func newGuardProtect() *guardProtect {
	return &guardProtect{actionMeta{
		id:            ActionGuardProtect,
		priority:      priorityGuardProtect,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    -1,
		requiresAlive: true,
		optional:      true,
	}}
}

func (a *guardProtect) EligibleTargets(r *Room, _ int) []int {
	if r.Day > 1 {
		return aliveExcept(r, r.Scratch.GuardHistory[r.Day-1])
	}
	return r.AliveSeats()
}

func (a *guardProtect) Validate(r *Room, inst ActionInstance) error {
	if prev, ok := r.Scratch.GuardHistory[r.Day-1]; ok && prev == inst.Targets[0] {
		return errGuardRepeat
	}
	return nil
}

func (a *guardProtect) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	target := inst.Targets[0]
	r.Scratch.GuardHistory[r.Day] = target
	acc.Protected[target] = true
	return nil
}

type witchAntidote struct{ actionMeta }

func newWitchAntidote() *witchAntidote {
	return &witchAntidote{actionMeta{
		id:          ActionWitchAntidote,
		priority:    priorityWitchAntidote,
		timing:      TimingNight,
		targetCount: 1,
		usageLimit:  1,
		// the target is already under the knife, so it may not count as
		// alive by the time the judge records the save
		requiresAlive: false,
		optional:      true,
	}}
}

func (a *witchAntidote) EligibleTargets(r *Room, actor int) []int {
	if !r.Settings.WitchSelfSave {
		return aliveExcept(r, actor)
	}
	return r.AliveSeats()
}

func (a *witchAntidote) Validate(r *Room, inst ActionInstance) error {
	if inst.Targets[0] == inst.Actor && !r.Settings.WitchSelfSave {
		return errWitchSelfSave
	}
	return nil
}

func (a *witchAntidote) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	target := inst.Targets[0]
	if !slices.Contains(acc.Deaths[CauseWerewolf], target) {
		// The potion only counters the knife; a miss is not consumed.
		return errAntidoteMissed
	}
	acc.Saved = append(acc.Saved, target)
	return nil
}

type witchPoison struct{ actionMeta }

func newWitchPoison() *witchPoison {
	return &witchPoison{actionMeta{
		id:            ActionWitchPoison,
		priority:      priorityWitchPoison,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    1,
		requiresAlive: true,
		optional:      true,
	}}
}

func (a *witchPoison) EligibleTargets(r *Room, actor int) []int {
	return aliveExcept(r, actor)
}

func (a *witchPoison) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	acc.addDeath(CausePoison, inst.Targets[0])
	return nil
}

type seerCheck struct{ actionMeta }

func newSeerCheck() *seerCheck {
	return &seerCheck{actionMeta{
		id:            ActionSeerCheck,
		priority:      prioritySeerCheck,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    -1,
		requiresAlive: true,
		optional:      true,
	}}
}

func (a *seerCheck) EligibleTargets(r *Room, actor int) []int {
	return aliveExcept(r, actor)
}

func (a *seerCheck) Execute(r *Room, inst ActionInstance, _ *Accumulation) error {
	target := inst.Targets[0]
	verdict := "good"
	if r.isWolfCampSeat(target) {
		verdict = "wolf"
	}
	r.appendHistory("night %d: the seer checked seat %d: %s", r.Day, target, verdict)
	return nil
}

// ---------------------------------------------------------------------------
// Death triggers

// revengeShot is the shared shape of the hunter's and wolf king's dying
// shot: granted on death (unless poisoned), consumed on use, fired
// immediately during the announcement.
type revengeShot struct {
	actionMeta
	role  string
	cause DeathCause
}

func newHunterRevenge() *revengeShot {
	return &revengeShot{
		actionMeta: actionMeta{
			id:            ActionHunterRevenge,
			priority:      priorityRevenge,
			timing:        TimingDeathTrigger,
			targetCount:   1,
			usageLimit:    1,
			requiresAlive: true,
			immediate:     true,
			optional:      true,
		},
		role:  RoleHunter,
		cause: CauseHunterRevenge,
	}
}

func newWolfKingRevenge() *revengeShot {
	return &revengeShot{
		actionMeta: actionMeta{
			id:            ActionWolfKingRevenge,
			priority:      priorityRevenge,
			timing:        TimingDeathTrigger,
			targetCount:   1,
			usageLimit:    1,
			requiresAlive: true,
			immediate:     true,
			optional:      true,
		},
		role:  RoleWolfKing,
		cause: CauseWolfKingRevenge,
	}
}

func (a *revengeShot) EligibleTargets(r *Room, actor int) []int {
	return aliveExcept(r, actor)
}

func (a *revengeShot) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	acc.addDeath(a.cause, inst.Targets[0])
	r.Scratch.revokeBonus(inst.Actor, a.id)
	r.appendHistory("day %d: seat %d fired a dying shot at seat %d", r.Day, inst.Actor, inst.Targets[0])
	return nil
}

// OnDeath grants the shot when the owning role dies, unless poison took it.
func (a *revengeShot) OnDeath(r *Room, seat int, diedRole string, cause DeathCause) {
	if diedRole != a.role || cause == CausePoison {
		return
	}
	r.Scratch.grantBonus(seat, a.id)
}

// ---------------------------------------------------------------------------
// Dream weaver

type dreamWeaverLink struct{ actionMeta }

func newDreamWeaverLink() *dreamWeaverLink {
	return &dreamWeaverLink{actionMeta{
		id:            ActionDreamWeaverLink,
		priority:      priorityDreamWeaverLink,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    -1,
		requiresAlive: true,
		// the weaver must link someone every night; a skipped link is
		// itself a tell and goes on the record
		optional: false,
	}}
}

func (a *dreamWeaverLink) EligibleTargets(r *Room, actor int) []int {
	return aliveExcept(r, actor)
}

func (a *dreamWeaverLink) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	target := inst.Targets[0]
	acc.Sleepwalker = target
	prev := r.Scratch.LinkHistory[r.Day-1]
	r.Scratch.LinkHistory[r.Day] = target
	if prev == target {
		// Two consecutive nights in the same dream is fatal.
		acc.addDeath(CauseDreamWeaver, target)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dark merchant

type darkMerchantTrade struct{ actionMeta }

func newDarkMerchantTrade() *darkMerchantTrade {
	return &darkMerchantTrade{actionMeta{
		id:            ActionDarkMerchantTrade,
		priority:      priorityMerchantTrade,
		timing:        TimingNight,
		targetCount:   1,
		usageLimit:    1,
		requiresAlive: true,
		optional:      true,
	}}
}

func (a *darkMerchantTrade) EligibleTargets(r *Room, actor int) []int {
	if r.Scratch.TradeDone {
		return nil
	}
	return aliveExcept(r, actor)
}

func (a *darkMerchantTrade) Validate(r *Room, inst ActionInstance) error {
	if r.Scratch.TradeDone {
		return errTradeDone
	}
	if inst.Targets[0] == inst.Actor {
		return errTradeSelf
	}
	return nil
}

func (a *darkMerchantTrade) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	target := inst.Targets[0]
	r.Scratch.TradeDone = true
	if r.isWolfCampSeat(target) {
		// Dealing with a wolf costs the merchant its life; nothing changes
		// hands.
		acc.addDeath(CauseTradedWithWolf, inst.Actor)
		r.appendHistory("night %d: the merchant knocked on the wrong door", r.Day)
		return nil
	}
	r.Scratch.grantBonus(target, ActionMerchantGun)
	r.appendHistory("night %d: the merchant completed a trade with seat %d", r.Day, target)
	return nil
}

// merchantGun is the traded-away firearm: usable in any phase once granted,
// consumed on use, and confiscated if its holder dies by poison. Deaths by
// any other cause leave it usable for a dying shot.
type merchantGun struct{ actionMeta }

func newMerchantGun() *merchantGun {
	return &merchantGun{actionMeta{
		id:            ActionMerchantGun,
		priority:      priorityMerchantGun,
		timing:        TimingAnytime,
		targetCount:   1,
		usageLimit:    1,
		requiresAlive: true,
		immediate:     true,
		optional:      true,
	}}
}

func (a *merchantGun) EligibleTargets(r *Room, actor int) []int {
	return aliveExcept(r, actor)
}

func (a *merchantGun) Execute(r *Room, inst ActionInstance, acc *Accumulation) error {
	acc.addDeath(CauseMerchantGun, inst.Targets[0])
	r.Scratch.revokeBonus(inst.Actor, a.id)
	r.appendHistory("day %d: a merchant's gun went off at seat %d", r.Day, inst.Targets[0])
	return nil
}

func (a *merchantGun) OnDeath(r *Room, seat int, _ string, cause DeathCause) {
	if cause == CausePoison && r.Scratch.hasBonus(seat, a.id) {
		r.Scratch.revokeBonus(seat, a.id)
	}
}
