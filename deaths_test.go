package main

import (
	"context"
	"testing"
	"time"
)

func newTestOrchestrator(t *testing.T, collab *stubCollaborators) *Orchestrator {
	t.Helper()
	return NewOrchestrator(NewDefaultRegistry(), collab, time.Second, newTestLogger(t))
}

func TestFirstAnnouncementOpensLastWords(t *testing.T) {
	r := resolutionRoom(t)
	r.Phase = PhaseDeathAnnouncement
	collab := &stubCollaborators{}
	o := newTestOrchestrator(t, collab)

	records := o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {8}})

	if len(records) != 1 || records[0].Seat != 8 || records[0].Cause != CauseWerewolf {
		t.Fatalf("unexpected records: %+v", records)
	}
	if len(collab.lastWords) != 1 || collab.lastWords[0] != 8 {
		t.Errorf("day one deaths get last words, got %v", collab.lastWords)
	}
	if r.Seat(8).Alive() {
		t.Error("seat 8 should be dead")
	}
}

func TestLaterNightsSkipLastWords(t *testing.T) {
	r := resolutionRoom(t)
	r.Day = 2
	r.Phase = PhaseDeathAnnouncement
	collab := &stubCollaborators{}
	o := newTestOrchestrator(t, collab)

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {8}})

	if len(collab.lastWords) != 0 {
		t.Errorf("night deaths after day one are silent, got %v", collab.lastWords)
	}
}

func TestExpulsionAlwaysGetsLastWords(t *testing.T) {
	r := resolutionRoom(t)
	r.Day = 3
	r.Phase = PhaseVoting
	collab := &stubCollaborators{}
	o := newTestOrchestrator(t, collab)

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseExpel: {9}})

	if len(collab.lastWords) != 1 || collab.lastWords[0] != 9 {
		t.Errorf("an expelled seat always speaks, got %v", collab.lastWords)
	}
}

func TestSheriffDeathMovesTheBadge(t *testing.T) {
	r := resolutionRoom(t)
	r.Day = 2
	r.Seat(8).Sheriff = true
	collab := &stubCollaborators{heir: 9}
	o := newTestOrchestrator(t, collab)

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {8}})

	if len(collab.transfersFrom) != 1 || collab.transfersFrom[0] != 8 {
		t.Fatalf("expected one transfer from seat 8, got %v", collab.transfersFrom)
	}
	if r.Seat(8).Sheriff {
		t.Error("the dead sheriff keeps the badge")
	}
	if !r.Seat(9).Sheriff {
		t.Error("the heir did not receive the badge")
	}
}

func TestBadgeTornUpWhenNoHeir(t *testing.T) {
	r := resolutionRoom(t)
	r.Day = 2
	r.Seat(8).Sheriff = true
	collab := &stubCollaborators{heir: 0}
	o := newTestOrchestrator(t, collab)

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {8}})

	if r.SheriffSeat() != 0 {
		t.Errorf("nobody should hold the badge, got seat %d", r.SheriffSeat())
	}
}

func TestHunterDeathGrantsRevenge(t *testing.T) {
	r := resolutionRoom(t)
	o := newTestOrchestrator(t, &stubCollaborators{})

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {6}})

	if !r.Scratch.hasBonus(6, ActionHunterRevenge) {
		t.Error("a knifed hunter keeps the dying shot")
	}
}

func TestPoisonedHunterGetsNoRevenge(t *testing.T) {
	r := resolutionRoom(t)
	o := newTestOrchestrator(t, &stubCollaborators{})

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CausePoison: {6}})

	if r.Scratch.hasBonus(6, ActionHunterRevenge) {
		t.Error("poison silences the hunter's gun")
	}
}

func TestPoisonConfiscatesTheMerchantGun(t *testing.T) {
	r := resolutionRoom(t)
	r.Scratch.grantBonus(8, ActionMerchantGun)
	o := newTestOrchestrator(t, &stubCollaborators{})

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CausePoison: {8}})

	if r.Scratch.hasBonus(8, ActionMerchantGun) {
		t.Error("poison confiscates the traded gun")
	}
}

func TestKnifedGunHolderKeepsTheGun(t *testing.T) {
	r := resolutionRoom(t)
	r.Scratch.grantBonus(8, ActionMerchantGun)
	o := newTestOrchestrator(t, &stubCollaborators{})

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {8}})

	if !r.Scratch.hasBonus(8, ActionMerchantGun) {
		t.Error("a knifed holder may still fire the gun on the way down")
	}
}

func TestTriggerDeathsDrainInOneCycle(t *testing.T) {
	r := resolutionRoom(t)
	o := newTestOrchestrator(t, &stubCollaborators{})

	// a dying shot queued mid-announcement joins the same cycle
	r.Scratch.TriggerDeaths[CauseHunterRevenge] = []int{9}
	records := o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {8}})

	if len(records) != 2 {
		t.Fatalf("expected both deaths announced, got %+v", records)
	}
	if len(r.Scratch.TriggerDeaths) != 0 {
		t.Errorf("trigger queue not drained: %v", r.Scratch.TriggerDeaths)
	}
	if r.Seat(9).Alive() {
		t.Error("the shot victim should be dead")
	}
}

func TestSeatProcessedOncePerCycle(t *testing.T) {
	r := resolutionRoom(t)
	o := newTestOrchestrator(t, &stubCollaborators{})

	records := o.ResolveWave(context.Background(), r, map[DeathCause][]int{
		CauseWerewolf: {8},
		CausePoison:   {8},
	})

	if len(records) != 1 {
		t.Fatalf("one seat, one record, got %+v", records)
	}
	if records[0].Cause != CauseWerewolf {
		t.Errorf("the knife comes first in cause order, got %s", records[0].Cause)
	}
}

func TestDoubleIdentityDiesInTwoSteps(t *testing.T) {
	r := newTestRoom(t,
		[]string{RoleWerewolf},
		[]string{RoleVillager, RoleHunter},
		[]string{RoleVillager},
	)
	o := newTestOrchestrator(t, &stubCollaborators{})

	records := o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {2}})
	if len(records) != 1 {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Final {
		t.Error("the first identity's death is not final")
	}
	if records[0].Role != RoleVillager {
		t.Errorf("the main identity dies first, got %s", records[0].Role)
	}
	if !r.Seat(2).Alive() {
		t.Error("the seat plays on with its second identity")
	}

	// the next night takes the remaining identity
	records = o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {2}})
	if len(records) != 1 || !records[0].Final {
		t.Fatalf("the second death is final, got %+v", records)
	}
	if records[0].Role != RoleHunter {
		t.Errorf("the hunter identity falls second, got %s", records[0].Role)
	}
	if !r.Scratch.hasBonus(2, ActionHunterRevenge) {
		t.Error("the hunter identity's death still grants the shot")
	}
}

func TestLaterShotTakesTheSecondIdentity(t *testing.T) {
	r := newTestRoom(t,
		[]string{RoleWerewolf},
		[]string{RoleVillager, RoleHunter},
		[]string{RoleVillager},
	)
	o := newTestOrchestrator(t, &stubCollaborators{})

	// night: the knife takes only the first identity
	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseWerewolf: {2}})
	if !r.Seat(2).Alive() {
		t.Fatal("the seat plays on with its second identity")
	}

	// speeches: a traded gun goes off at the same seat
	r.Phase = PhaseSpeech
	r.Scratch.grantBonus(3, ActionMerchantGun)
	e := NewEngine(NewDefaultRegistry(), newTestLogger(t))
	mustSubmit(t, e, r, ActionInstance{ActionID: ActionMerchantGun, Actor: 3, Targets: []int{2}, Source: SourcePlayer})
	records := o.DrainTriggers(context.Background(), r)

	if len(records) != 1 || records[0].Seat != 2 || !records[0].Final {
		t.Fatalf("the shot must fell the surviving identity, got %+v", records)
	}
	if records[0].Role != RoleHunter {
		t.Errorf("the hunter identity falls to the gun, got %s", records[0].Role)
	}
	if records[0].Cause != CauseMerchantGun {
		t.Errorf("gun deaths carry their own cause, got %s", records[0].Cause)
	}
	if r.Seat(2).Alive() {
		t.Error("seat 2 should be fully dead")
	}
}

func TestWolfElderDeathOpensBrotherWindow(t *testing.T) {
	r := newTestRoom(t, seats(RoleWolfElder, RoleWolfYounger, RoleVillager, RoleVillager)...)
	r.Day = 2
	o := newTestOrchestrator(t, &stubCollaborators{})

	o.ResolveWave(context.Background(), r, map[DeathCause][]int{CauseExpel: {1}})

	if r.Scratch.WolfBrotherDiedDay != 2 {
		t.Errorf("the elder's death day must be recorded, got %d", r.Scratch.WolfBrotherDiedDay)
	}
}
