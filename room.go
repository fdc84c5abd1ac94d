package main

import (
	"fmt"
	"slices"
	"time"
)

// Camp is the win-condition alignment of a role.
type Camp string

const (
	CampVillager Camp = "villager"
	CampDeity    Camp = "deity"
	CampWolf     Camp = "wolf"
)

// DeathCause tags why a seat died. The zero-ish CauseUnknown is used for
// judge-forced deaths with no recorded reason.
type DeathCause string

const (
	CauseWerewolf         DeathCause = "werewolf"
	CausePoison           DeathCause = "poison"
	CauseHunterRevenge    DeathCause = "hunter_revenge"
	CauseWolfKingRevenge  DeathCause = "wolf_king_revenge"
	CauseMerchantGun      DeathCause = "merchant_gun"
	CauseDoubleProtection DeathCause = "double_protection"
	CauseDreamWeaver      DeathCause = "dream_weaver"
	CauseTradedWithWolf   DeathCause = "traded_with_wolf"
	CauseExpel            DeathCause = "expel"
	CauseUnknown          DeathCause = "unknown"
)

// causeOrder fixes the iteration order of cause maps so resolution output
// and announcements are deterministic.
var causeOrder = []DeathCause{
	CauseWerewolf,
	CausePoison,
	CauseHunterRevenge,
	CauseWolfKingRevenge,
	CauseMerchantGun,
	CauseDoubleProtection,
	CauseDreamWeaver,
	CauseTradedWithWolf,
	CauseExpel,
	CauseUnknown,
}

// Phase is a state of the game flow.
type Phase string

const (
	PhaseSetup             Phase = "setup"
	PhaseNight             Phase = "night"
	PhaseDay               Phase = "day"
	PhaseSheriffElection   Phase = "sheriff_election"
	PhaseDeathAnnouncement Phase = "death_announcement"
	PhaseSpeech            Phase = "speech"
	PhaseVoting            Phase = "voting"
)

// Source identifies who submitted an action.
type Source string

const (
	SourcePlayer Source = "player"
	SourceJudge  Source = "judge"
)

// Seat is one chair at the table. A seat may carry two role identities
// (double-identity games); it is only out of the game once every identity
// is dead.
type Seat struct {
	Number    int      `json:"number"`
	Roles     []string `json:"roles"`
	DeadRoles []string `json:"dead_roles"`
	Sheriff   bool     `json:"sheriff"`
}

// Alive reports whether the seat still has a living identity.
func (s *Seat) Alive() bool {
	return len(s.DeadRoles) < len(s.Roles)
}

// HasRole reports whether the seat holds the named role among its living
// identities.
func (s *Seat) HasRole(role string) bool {
	if !slices.Contains(s.Roles, role) {
		return false
	}
	return !slices.Contains(s.DeadRoles, role)
}

// LivingRoles returns the identities that are still alive on this seat.
func (s *Seat) LivingRoles() []string {
	var out []string
	for _, r := range s.Roles {
		if !slices.Contains(s.DeadRoles, r) {
			out = append(out, r)
		}
	}
	return out
}

// markDead kills one living identity on the seat and returns the role that
// died. The seat's main identity dies first unless a specific role is named.
func (s *Seat) markDead(role string) string {
	living := s.LivingRoles()
	if len(living) == 0 {
		return ""
	}
	if role == "" || !slices.Contains(living, role) {
		role = living[0]
	}
	s.DeadRoles = append(s.DeadRoles, role)
	return role
}

// WolfWinRule selects when the wolf camp wins.
type WolfWinRule string

const (
	WinRuleParity    WolfWinRule = "parity"    // wolves >= everyone else
	WinRuleDeities   WolfWinRule = "deities"   // all deities dead
	WinRuleVillagers WolfWinRule = "villagers" // all plain villagers dead
)

// RoomSettings are judge-configurable rules for one table.
type RoomSettings struct {
	AllowWolfSelfKill bool        `json:"allow_wolf_self_kill"`
	WitchSelfSave     bool        `json:"witch_self_save"`
	WolfWinRule       WolfWinRule `json:"wolf_win_rule"`
}

func defaultSettings() RoomSettings {
	return RoomSettings{WolfWinRule: WinRuleParity}
}

// ExecutedAction is one entry in the append-only execution history. Usage
// limits are derived from this history, never from counters on the actions
// themselves.
type ExecutedAction struct {
	Day      int    `json:"day"`
	ActionID string `json:"action_id"`
	Actor    int    `json:"actor"`
}

// Scratch is the per-room working state. The fields above the divider are
// wiped on every phase change; the fields below survive phase changes and
// are only reset when a new game starts.
type Scratch struct {
	Pending      []ActionInstance `json:"pending"`
	Submitted    map[int]bool     `json:"submitted"`
	PhaseActions map[string][]int `json:"phase_actions"` // action id -> actors this phase
	ExpelSeat    int              `json:"expel_seat"`    // voting-phase verdict, 0 = no expulsion

	// NightWave is the resolved night outcome, carried until the death
	// announcement consumes it. TriggerDeaths queue kills from immediate
	// actions for the announcement loop.
	NightWave     map[DeathCause][]int `json:"night_wave"`
	TriggerDeaths map[DeathCause][]int `json:"trigger_deaths"`

	// ProcessedDeaths dedups seats within one cascade walk; the
	// orchestrator resets it at the start of each walk
	ProcessedDeaths map[int]bool `json:"processed_deaths"`

	Executed           []ExecutedAction `json:"executed"`
	GuardHistory       map[int]int      `json:"guard_history"` // day -> protected seat
	FearHistory        map[int]int      `json:"fear_history"`  // day -> feared seat
	LinkHistory        map[int]int      `json:"link_history"`  // day -> linked sleepwalker
	OwnedBonus         map[int][]string `json:"owned_bonus"`   // seat -> granted action ids
	TradeDone          bool             `json:"trade_done"`
	WolfBrotherDiedDay int              `json:"wolf_brother_died_day"` // 0 = still alive
}

func newScratch() Scratch {
	return Scratch{
		Submitted:       make(map[int]bool),
		PhaseActions:    make(map[string][]int),
		TriggerDeaths:   make(map[DeathCause][]int),
		ProcessedDeaths: make(map[int]bool),
		GuardHistory:    make(map[int]int),
		FearHistory:     make(map[int]int),
		LinkHistory:     make(map[int]int),
		OwnedBonus:      make(map[int][]string),
	}
}

// resetPhase clears the per-phase fields and keeps everything that has to
// survive phase transitions (histories, owned bonus actions, trade flag,
// wolf brother death day, execution log).
func (sc *Scratch) resetPhase() {
	sc.Pending = nil
	sc.Submitted = make(map[int]bool)
	sc.PhaseActions = make(map[string][]int)
	sc.ExpelSeat = 0
}

// resetNight additionally clears the announcement bookkeeping carried
// through the day phases.
func (sc *Scratch) resetNight() {
	sc.resetPhase()
	sc.NightWave = nil
	sc.TriggerDeaths = make(map[DeathCause][]int)
	sc.ProcessedDeaths = make(map[int]bool)
}

// usageCount returns how many times the actor has executed the action over
// the whole game.
func (sc *Scratch) usageCount(actionID string, actor int) int {
	n := 0
	for _, e := range sc.Executed {
		if e.ActionID == actionID && e.Actor == actor {
			n++
		}
	}
	return n
}

// recordExecution appends to the execution history.
func (sc *Scratch) recordExecution(day int, actionID string, actor int) {
	sc.Executed = append(sc.Executed, ExecutedAction{Day: day, ActionID: actionID, Actor: actor})
}

// hasBonus reports whether a seat currently holds the granted action.
func (sc *Scratch) hasBonus(seat int, actionID string) bool {
	return slices.Contains(sc.OwnedBonus[seat], actionID)
}

func (sc *Scratch) grantBonus(seat int, actionID string) {
	if sc.hasBonus(seat, actionID) {
		return
	}
	sc.OwnedBonus[seat] = append(sc.OwnedBonus[seat], actionID)
}

func (sc *Scratch) revokeBonus(seat int, actionID string) {
	owned := sc.OwnedBonus[seat]
	if i := slices.Index(owned, actionID); i >= 0 {
		sc.OwnedBonus[seat] = slices.Delete(owned, i, i+1)
	}
}

// Room is the full judge-side state of one table.
type Room struct {
	ID          string       `json:"id"`
	Day         int          `json:"day"`
	Phase       Phase        `json:"phase"`
	Seats       []*Seat      `json:"seats"`
	Settings    RoomSettings `json:"settings"`
	Scratch     Scratch      `json:"scratch"`
	Winner      Camp         `json:"winner,omitempty"`
	PhaseEndsAt time.Time    `json:"phase_ends_at"`
	History     []string     `json:"history"`

	// CustomRoles are judge-defined roles for this table only. Ids are
	// unique within the room; a custom role shadows a built-in of the
	// same name.
	CustomRoles map[string]RoleSpec `json:"custom_roles,omitempty"`

	// Generation is the optimistic-concurrency token from the store. It is
	// not part of the serialized snapshot.
	Generation int64 `json:"-"`
}

// Seat returns the seat with the given number, or nil.
func (r *Room) Seat(n int) *Seat {
	for _, s := range r.Seats {
		if s.Number == n {
			return s
		}
	}
	return nil
}

// AliveSeats returns the numbers of all seats still in the game, ascending.
func (r *Room) AliveSeats() []int {
	var out []int
	for _, s := range r.Seats {
		if s.Alive() {
			out = append(out, s.Number)
		}
	}
	return out
}

// SeatWithRole returns the first seat whose living identities include the
// role, or 0.
func (r *Room) SeatWithRole(role string) int {
	for _, s := range r.Seats {
		if s.HasRole(role) {
			return s.Number
		}
	}
	return 0
}

// roleSpec looks the role up in this room's custom catalog first, then the
// built-ins.
func (r *Room) roleSpec(name string) (RoleSpec, bool) {
	if spec, ok := r.CustomRoles[name]; ok {
		return spec, true
	}
	spec, ok := builtinRoles[name]
	return spec, ok
}

// RegisterRole adds a judge-defined role to this table. An existing name is
// overwritten deliberately so a room can re-skin a built-in.
func (r *Room) RegisterRole(spec RoleSpec) {
	if r.CustomRoles == nil {
		r.CustomRoles = make(map[string]RoleSpec)
	}
	r.CustomRoles[spec.Name] = spec
}

// isWolfSeat reports whether any living identity on the seat belongs to the
// wolf pack.
func (r *Room) isWolfSeat(n int) bool {
	s := r.Seat(n)
	if s == nil {
		return false
	}
	for _, role := range s.LivingRoles() {
		if spec, ok := r.roleSpec(role); ok && spec.Wolf {
			return true
		}
	}
	return false
}

// isWolfCampSeat is like isWolfSeat but also counts wolf-camp roles that do
// not join the pack kill (e.g. a lone wolf-aligned deity).
func (r *Room) isWolfCampSeat(n int) bool {
	s := r.Seat(n)
	if s == nil {
		return false
	}
	for _, role := range s.LivingRoles() {
		if spec, ok := r.roleSpec(role); ok && spec.Camp == CampWolf {
			return true
		}
	}
	return false
}

// SheriffSeat returns the current sheriff's seat number, or 0.
func (r *Room) SheriffSeat() int {
	for _, s := range r.Seats {
		if s.Sheriff {
			return s.Number
		}
	}
	return 0
}

// appendHistory records a public event line. The narrator reads these.
func (r *Room) appendHistory(format string, args ...any) {
	r.History = append(r.History, fmt.Sprintf(format, args...))
}

// EvaluateWinner checks the win conditions and returns the winning camp,
// or "" while the game is still live.
func (r *Room) EvaluateWinner() Camp {
	wolves, deities, villagers := 0, 0, 0
	for _, s := range r.Seats {
		for _, role := range s.LivingRoles() {
			spec, ok := r.roleSpec(role)
			if !ok {
				continue
			}
			switch {
			case spec.Camp == CampWolf:
				wolves++
			case spec.Camp == CampDeity:
				deities++
			default:
				villagers++
			}
		}
	}

	if wolves == 0 {
		return CampVillager
	}
	switch r.Settings.WolfWinRule {
	case WinRuleDeities:
		if deities == 0 {
			return CampWolf
		}
	case WinRuleVillagers:
		if villagers == 0 {
			return CampWolf
		}
	default:
		if wolves >= deities+villagers {
			return CampWolf
		}
	}
	return ""
}

// NewRoom builds a room in the setup phase with the given seat roles.
// Seats are numbered from 1 in the order given; an entry may hold one or
// two roles (double identity).
func NewRoom(id string, seatRoles [][]string, settings RoomSettings) *Room {
	r := &Room{
		ID:       id,
		Phase:    PhaseSetup,
		Settings: settings,
		Scratch:  newScratch(),
	}
	for i, roles := range seatRoles {
		r.Seats = append(r.Seats, &Seat{Number: i + 1, Roles: slices.Clone(roles)})
	}
	return r
}
