package main

import (
	"errors"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	r := NewRoom("room-1", seats(RoleWerewolf, RoleSeer, RoleVillager), defaultSettings())

	if err := store.Create(r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Generation != 1 {
		t.Errorf("a fresh room starts at generation 1, got %d", r.Generation)
	}

	loaded, err := store.Load("room-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != r.ID || len(loaded.Seats) != 3 || loaded.Phase != PhaseSetup {
		t.Errorf("loaded room does not match: %+v", loaded)
	}
	if loaded.Scratch.Submitted == nil || loaded.Scratch.GuardHistory == nil {
		t.Error("scratch maps must survive the round trip")
	}
}

func TestStoreSaveBumpsGeneration(t *testing.T) {
	store := newTestStore(t)
	r := NewRoom("room-1", seats(RoleWerewolf, RoleVillager), defaultSettings())
	store.Create(r)

	r.Day = 1
	r.Phase = PhaseNight
	if err := store.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if r.Generation != 2 {
		t.Errorf("generation should bump to 2, got %d", r.Generation)
	}

	loaded, _ := store.Load("room-1")
	if loaded.Phase != PhaseNight || loaded.Generation != 2 {
		t.Errorf("persisted state wrong: phase=%s gen=%d", loaded.Phase, loaded.Generation)
	}
}

func TestStoreRejectsStaleSave(t *testing.T) {
	store := newTestStore(t)
	r := NewRoom("room-1", seats(RoleWerewolf, RoleVillager), defaultSettings())
	store.Create(r)

	first, _ := store.Load("room-1")
	second, _ := store.Load("room-1")

	if err := store.Save(first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := store.Save(second)
	if !errors.Is(err, ErrStaleRoom) {
		t.Errorf("got %v, want %v", err, ErrStaleRoom)
	}
}

func TestStoreCreateRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	r := NewRoom("room-1", seats(RoleWerewolf, RoleVillager), defaultSettings())
	store.Create(r)

	err := store.Create(NewRoom("room-1", seats(RoleVillager), defaultSettings()))
	if !errors.Is(err, ErrRoomExists) {
		t.Errorf("got %v, want %v", err, ErrRoomExists)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("got %v, want %v", err, ErrRoomNotFound)
	}
	err = store.Save(&Room{ID: "nope", Generation: 1})
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("saving a missing room: got %v, want %v", err, ErrRoomNotFound)
	}
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	store.Create(NewRoom("b", seats(RoleVillager), defaultSettings()))
	store.Create(NewRoom("a", seats(RoleVillager), defaultSettings()))

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected [a b], got %v", ids)
	}
}
