package main

import (
	"fmt"
	"slices"
)

// Timing is the phase window an action may be submitted in.
type Timing string

const (
	TimingNight        Timing = "night"
	TimingDay          Timing = "day"
	TimingAnytime      Timing = "anytime"
	TimingDeathTrigger Timing = "death_trigger"
)

// ActionInstance is one submitted use of an ability.
type ActionInstance struct {
	ID       string `json:"id"`
	ActionID string `json:"action_id"`
	Actor    int    `json:"actor"`
	Targets  []int  `json:"targets"`
	Source   Source `json:"source"`
	Seq      int    `json:"seq"` // submission order, tie-break under equal priority
}

// Accumulation is the shared scratch the resolution pipeline folds action
// effects into. All fields are typed; actions communicate through it rather
// than through side channels.
type Accumulation struct {
	Deaths    map[DeathCause][]int
	Saved     []int
	Protected map[int]bool

	WolfKillSuppressed bool // set when the nightmare feared a pack wolf
	FearedSeat         int  // seat whose own actions are voided tonight
	Sleepwalker        int  // seat currently linked by the dream weaver
	Errors             []error
}

func newAccumulation() *Accumulation {
	return &Accumulation{
		Deaths:    make(map[DeathCause][]int),
		Protected: make(map[int]bool),
	}
}

func (a *Accumulation) addDeath(cause DeathCause, seat int) {
	if slices.Contains(a.Deaths[cause], seat) {
		return
	}
	a.Deaths[cause] = append(a.Deaths[cause], seat)
}

func (a *Accumulation) removeDeath(cause DeathCause, seat int) {
	victims := a.Deaths[cause]
	if i := slices.Index(victims, seat); i >= 0 {
		a.Deaths[cause] = slices.Delete(victims, i, i+1)
	}
}

// wolfVictims returns the current wolf-kill list.
func (a *Accumulation) wolfVictims() []int {
	return slices.Clone(a.Deaths[CauseWerewolf])
}

// RoleAction is one ability: static metadata plus the behavior hooks the
// pipeline and the death orchestrator call.
type RoleAction interface {
	ID() string
	Priority() int
	Timing() Timing
	TargetCount() int
	UsageLimit() int // -1 = unlimited
	RequiresAliveTarget() bool
	Immediate() bool
	AllowMultiplePerPhase() bool
	Optional() bool

	// EligibleTargets lists the seats the actor may pick right now.
	EligibleTargets(r *Room, actor int) []int
	// Validate runs action-specific checks after the structural ones.
	Validate(r *Room, inst ActionInstance) error
	// Execute applies the effect into the accumulator.
	Execute(r *Room, inst ActionInstance, acc *Accumulation) error
	// OnDeath fires when a seat's identity dies, for every registered
	// action. Implementations check whether the death concerns them.
	OnDeath(r *Room, seat int, diedRole string, cause DeathCause)
	// OnSubmitted fires after a submission is accepted.
	OnSubmitted(r *Room, inst ActionInstance)
}

// actionMeta carries the static metadata and the no-op defaults. Concrete
// actions embed it and override what they need.
type actionMeta struct {
	id            string
	priority      int
	timing        Timing
	targetCount   int
	usageLimit    int
	requiresAlive bool
	immediate     bool
	allowMultiple bool
	optional      bool
}

func (m actionMeta) ID() string                 { return m.id }
func (m actionMeta) Priority() int              { return m.priority }
func (m actionMeta) Timing() Timing             { return m.timing }
func (m actionMeta) TargetCount() int           { return m.targetCount }
func (m actionMeta) UsageLimit() int            { return m.usageLimit }
func (m actionMeta) RequiresAliveTarget() bool  { return m.requiresAlive }
func (m actionMeta) Immediate() bool            { return m.immediate }
func (m actionMeta) AllowMultiplePerPhase() bool { return m.allowMultiple }
func (m actionMeta) Optional() bool             { return m.optional }

func (m actionMeta) Validate(*Room, ActionInstance) error            { return nil }
func (m actionMeta) OnDeath(*Room, int, string, DeathCause)          {}
func (m actionMeta) OnSubmitted(*Room, ActionInstance)               {}

// aliveExcept is the common eligible-target helper: every living seat minus
// the excluded ones.
func aliveExcept(r *Room, exclude ...int) []int {
	var out []int
	for _, n := range r.AliveSeats() {
		if !slices.Contains(exclude, n) {
			out = append(out, n)
		}
	}
	return out
}

// Registry holds every known action, including judge-registered custom
// ones. Duplicate ids are rejected so custom roles cannot shadow the
// built-in catalog.
type Registry struct {
	actions map[string]RoleAction
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]RoleAction)}
}

var errDuplicateAction = fmt.Errorf("action id already registered")

func (g *Registry) Register(a RoleAction) error {
	if _, ok := g.actions[a.ID()]; ok {
		return fmt.Errorf("%w: %s", errDuplicateAction, a.ID())
	}
	g.actions[a.ID()] = a
	g.order = append(g.order, a.ID())
	return nil
}

func (g *Registry) Get(id string) (RoleAction, bool) {
	a, ok := g.actions[id]
	return a, ok
}

// All returns the actions in registration order.
func (g *Registry) All() []RoleAction {
	out := make([]RoleAction, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.actions[id])
	}
	return out
}

// runDeathHooks notifies every action of a death so granting and revoking
// of bonus abilities happens in one place.
func (g *Registry) runDeathHooks(r *Room, seat int, diedRole string, cause DeathCause) {
	for _, id := range g.order {
		g.actions[id].OnDeath(r, seat, diedRole, cause)
	}
}
