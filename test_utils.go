package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ============================================================================
// Test helpers shared by the engine, pipeline, and session tests
// ============================================================================

// newTestLogger builds a logger from the TEST_* environment variables so
// tests stay quiet by default but can be made verbose without code changes.
func newTestLogger(t *testing.T) *AppLogger {
	t.Helper()
	al, err := NewAppLoggerFromEnv()
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(al.Close)
	return al
}

// newTestRoom builds a room with one seat per role list, already in night
// one. Seat numbers start at 1 in the order given.
func newTestRoom(t *testing.T, seatRoles ...[]string) *Room {
	t.Helper()
	r := NewRoom("test-room", seatRoles, defaultSettings())
	r.Day = 1
	r.Phase = PhaseNight
	return r
}

// seats turns a flat role list into single-identity seats for newTestRoom.
func seats(roles ...string) [][]string {
	out := make([][]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, []string{role})
	}
	return out
}

// queue appends a pending instance directly, bypassing submission checks.
// Pipeline tests use it to set up exact resolution scenarios.
func queue(r *Room, actionID string, actor int, targets ...int) {
	r.Scratch.Pending = append(r.Scratch.Pending, ActionInstance{
		ID:       fmt.Sprintf("test-%d", len(r.Scratch.Pending)),
		ActionID: actionID,
		Actor:    actor,
		Targets:  targets,
		Source:   SourcePlayer,
		Seq:      len(r.Scratch.Pending),
	})
}

// mustSubmit routes through the engine and fails the test on rejection.
func mustSubmit(t *testing.T, e *Engine, r *Room, inst ActionInstance) ActionInstance {
	t.Helper()
	accepted, err := e.SubmitAction(r, inst)
	if err != nil {
		t.Fatalf("SubmitAction(%s by seat %d) rejected: %v", inst.ActionID, inst.Actor, err)
	}
	return accepted
}

// ============================================================================
// Fake clock
// ============================================================================

// fakeClock is a manually driven Clock. advance moves the wall time and
// fires any timers whose deadline passed, outside the internal lock so a
// timer callback may arm new timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, ft)
	return ft
}

func (ft *fakeTimer) Stop() bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	active := !ft.stopped && !ft.fired
	ft.stopped = true
	return active
}

// advance moves time forward and fires due timers.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, ft := range c.timers {
		if !ft.stopped && !ft.fired && !ft.deadline.After(c.now) {
			ft.fired = true
			due = append(due, ft)
		}
	}
	c.mu.Unlock()

	for _, ft := range due {
		ft.f()
	}
}

// pendingTimers counts timers that are armed but not yet fired or stopped.
func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ft := range c.timers {
		if !ft.stopped && !ft.fired {
			n++
		}
	}
	return n
}

// ============================================================================
// Recording doubles
// ============================================================================

// publishedEvent is one captured Broadcaster.Publish call.
type publishedEvent struct {
	RoomID  string
	Event   string
	Payload any
}

// recordingBroadcaster captures events instead of pushing them to sockets.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBroadcaster) Publish(roomID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{RoomID: roomID, Event: event, Payload: payload})
}

// eventNames returns the captured event names in order.
func (b *recordingBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, e := range b.events {
		names = append(names, e.Event)
	}
	return names
}

func (b *recordingBroadcaster) countEvent(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Event == name {
			n++
		}
	}
	return n
}

// stubCollaborators records last-words and badge-transfer calls and returns
// a fixed heir so orchestration tests can assert the badge moved.
type stubCollaborators struct {
	mu            sync.Mutex
	lastWords     []int
	transfersFrom []int
	heir          int
}

func (s *stubCollaborators) LastWords(_ context.Context, _ *Room, seat int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWords = append(s.lastWords, seat)
	return nil
}

func (s *stubCollaborators) OfficerTransfer(_ context.Context, _ *Room, from int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfersFrom = append(s.transfersFrom, from)
	return s.heir, nil
}

// stubNarrator returns canned flavor text through the streaming callback.
type stubNarrator struct {
	text string
}

func (n *stubNarrator) Narrate(_ context.Context, _ []string, onChunk func(string)) (string, error) {
	if onChunk != nil {
		onChunk(n.text)
	}
	return n.text, nil
}

// ============================================================================
// Database
// ============================================================================

var testDBSeq atomic.Int64

// newTestDB opens a private in-memory sqlite database. cache=shared keeps
// the data visible across the pool's connections; the unique name keeps
// parallel tests apart.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestStore builds a SQLStore over a fresh in-memory database.
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(newTestDB(t), newTestLogger(t))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
