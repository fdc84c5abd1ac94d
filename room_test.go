package main

import (
	"slices"
	"testing"
)

func TestSeatDoubleIdentity(t *testing.T) {
	s := &Seat{Number: 1, Roles: []string{RoleVillager, RoleHunter}}

	if !s.Alive() || !s.HasRole(RoleHunter) {
		t.Fatal("a fresh seat holds both identities")
	}

	died := s.markDead("")
	if died != RoleVillager {
		t.Errorf("the main identity dies first, got %s", died)
	}
	if !s.Alive() {
		t.Error("one living identity keeps the seat in the game")
	}
	if s.HasRole(RoleVillager) {
		t.Error("the dead identity is gone")
	}

	died = s.markDead("")
	if died != RoleHunter || s.Alive() {
		t.Errorf("the second death finishes the seat, died=%s alive=%v", died, s.Alive())
	}
	if s.markDead("") != "" {
		t.Error("a dead seat has nothing left to kill")
	}
}

func TestMarkDeadNamedRole(t *testing.T) {
	s := &Seat{Number: 1, Roles: []string{RoleVillager, RoleWitch}}
	if died := s.markDead(RoleWitch); died != RoleWitch {
		t.Errorf("naming a living identity kills exactly it, got %s", died)
	}
	if !s.HasRole(RoleVillager) {
		t.Error("the unnamed identity survives")
	}
}

func TestWolfSeatVersusWolfCamp(t *testing.T) {
	r := newTestRoom(t, seats(RoleWerewolf, RoleDreamWeaver, RoleSeer)...)

	if !r.isWolfSeat(1) || !r.isWolfCampSeat(1) {
		t.Error("a werewolf is both pack and camp")
	}
	if r.isWolfSeat(2) {
		t.Error("the dream weaver does not join the pack kill")
	}
	if !r.isWolfCampSeat(2) {
		t.Error("the dream weaver is still wolf-aligned for checks and trades")
	}
	if r.isWolfCampSeat(3) {
		t.Error("the seer is not wolf anything")
	}
}

func TestEvaluateWinnerRules(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		dead  []int
		rule  WolfWinRule
		want  Camp
	}{
		{
			name:  "live game",
			roles: []string{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager},
			rule:  WinRuleParity,
			want:  "",
		},
		{
			name:  "villagers win when wolves are gone",
			roles: []string{RoleWerewolf, RoleSeer, RoleVillager},
			dead:  []int{1},
			rule:  WinRuleParity,
			want:  CampVillager,
		},
		{
			name:  "parity",
			roles: []string{RoleWerewolf, RoleVillager, RoleVillager},
			dead:  []int{2},
			rule:  WinRuleParity,
			want:  CampWolf,
		},
		{
			name:  "deities rule ignores villagers",
			roles: []string{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager},
			dead:  []int{2},
			rule:  WinRuleDeities,
			want:  CampWolf,
		},
		{
			name:  "villagers rule ignores deities",
			roles: []string{RoleWerewolf, RoleSeer, RoleWitch, RoleVillager},
			dead:  []int{4},
			rule:  WinRuleVillagers,
			want:  CampWolf,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			settings := defaultSettings()
			settings.WolfWinRule = tc.rule
			r := NewRoom("r1", seats(tc.roles...), settings)
			for _, n := range tc.dead {
				r.Seat(n).markDead("")
			}
			if got := r.EvaluateWinner(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestScratchBonusBookkeeping(t *testing.T) {
	sc := newScratch()

	sc.grantBonus(3, ActionMerchantGun)
	sc.grantBonus(3, ActionMerchantGun) // idempotent
	if !sc.hasBonus(3, ActionMerchantGun) {
		t.Fatal("grant did not stick")
	}
	if len(sc.OwnedBonus[3]) != 1 {
		t.Errorf("double grant must not duplicate, got %v", sc.OwnedBonus[3])
	}

	sc.revokeBonus(3, ActionMerchantGun)
	if sc.hasBonus(3, ActionMerchantGun) {
		t.Error("revoke did not stick")
	}
	sc.revokeBonus(3, ActionMerchantGun) // revoking twice is harmless
}

func TestResetNightKeepsPersistentState(t *testing.T) {
	sc := newScratch()
	sc.Pending = append(sc.Pending, ActionInstance{ActionID: ActionWerewolfKill})
	sc.Submitted[1] = true
	sc.ExpelSeat = 4
	sc.NightWave = map[DeathCause][]int{CauseWerewolf: {3}}
	sc.recordExecution(1, ActionWitchPoison, 4)
	sc.GuardHistory[1] = 5
	sc.TradeDone = true

	sc.resetNight()

	if sc.Pending != nil || len(sc.Submitted) != 0 || sc.ExpelSeat != 0 || sc.NightWave != nil {
		t.Error("per-phase and carried night state must be wiped")
	}
	if sc.usageCount(ActionWitchPoison, 4) != 1 || sc.GuardHistory[1] != 5 || !sc.TradeDone {
		t.Error("persistent state must survive the night reset")
	}
}

func TestCustomRoleRegistration(t *testing.T) {
	r := newTestRoom(t, seats("grave_keeper", RoleWerewolf, RoleVillager)...)
	r.RegisterRole(RoleSpec{Name: "grave_keeper", Camp: CampDeity, Actions: []string{ActionSeerCheck}})

	if !roleGrantsAction(r, 1, ActionSeerCheck) {
		t.Error("a custom role grants its listed actions")
	}
	if r.isWolfCampSeat(1) {
		t.Error("the custom role is deity-aligned")
	}

	e := NewEngine(NewDefaultRegistry(), newTestLogger(t))
	mustSubmit(t, e, r, ActionInstance{ActionID: ActionSeerCheck, Actor: 1, Targets: []int{2}, Source: SourcePlayer})

	// the role belongs to this table only
	other := newTestRoom(t, seats("grave_keeper", RoleVillager)...)
	if roleGrantsAction(other, 1, ActionSeerCheck) {
		t.Error("a custom role must not leak into other rooms")
	}
}

func TestCustomRoleShadowsBuiltin(t *testing.T) {
	r := newTestRoom(t, seats(RoleVillager, RoleWerewolf)...)
	r.RegisterRole(RoleSpec{Name: RoleVillager, Camp: CampWolf, Wolf: true})

	if !r.isWolfSeat(1) {
		t.Error("a re-skinned role takes the custom spec")
	}
	plain := newTestRoom(t, seats(RoleVillager)...)
	if plain.isWolfSeat(1) {
		t.Error("the built-in villager is untouched elsewhere")
	}
}

func TestHistoryAppend(t *testing.T) {
	r := newTestRoom(t, seats(RoleVillager)...)
	r.appendHistory("day %d: seat %d pinned the badge", 1, 1)
	if !slices.Contains(r.History, "day 1: seat 1 pinned the badge") {
		t.Errorf("history line missing: %v", r.History)
	}
}
