package main

import "slices"

// Role names. Seats reference roles by name so judge-defined custom roles
// slot in without code changes.
const (
	RoleVillager     = "villager"
	RoleWerewolf     = "werewolf"
	RoleWolfKing     = "wolf_king"
	RoleNightmare    = "nightmare"
	RoleWolfElder    = "wolf_elder"   // elder of the wolf brother pair
	RoleWolfYounger  = "wolf_younger" // joins the pack only once the elder dies
	RoleSeer         = "seer"
	RoleWitch        = "witch"
	RoleGuard        = "guard"
	RoleHunter       = "hunter"
	RoleDreamWeaver  = "dream_weaver"
	RoleDarkMerchant = "dark_merchant"
)

// Action ids.
const (
	ActionWerewolfKill     = "werewolf_kill"
	ActionNightmareFear    = "nightmare_fear"
	ActionGuardProtect     = "guard_protect"
	ActionWitchAntidote    = "witch_antidote"
	ActionWitchPoison      = "witch_poison"
	ActionSeerCheck        = "seer_check"
	ActionHunterRevenge    = "hunter_revenge"
	ActionWolfKingRevenge  = "wolf_king_revenge"
	ActionDreamWeaverLink  = "dream_weaver_link"
	ActionDarkMerchantTrade = "dark_merchant_trade"
	ActionMerchantGun      = "merchant_gun"
	ActionWolfBrotherKill  = "wolf_brother_kill"
)

// Resolution priorities. Lower runs first; the death resolution stage is
// pinned after everything at priorityDeathResolution.
const (
	priorityNightmareFear   = 90
	priorityWerewolfKill    = 100
	priorityWolfBrotherKill = 110
	priorityGuardProtect    = 150
	priorityWitchAntidote   = 200
	priorityWitchPoison     = 210
	priorityRevenge         = 250
	prioritySeerCheck       = 300
	priorityDreamWeaverLink = 320
	priorityMerchantTrade   = 330
	priorityMerchantGun     = 340

	priorityDeathResolution = 1000
)

// RoleSpec is the static description of a role: its camp, whether it joins
// the wolf pack, and the actions its holder may use.
type RoleSpec struct {
	Name    string   `json:"name"`
	Camp    Camp     `json:"camp"`
	Wolf    bool     `json:"wolf"` // participates in the pack kill
	Actions []string `json:"actions,omitempty"`
}

// builtinRoles is the fixed catalog. Never mutated after init; table-specific
// roles live on the Room instead.
var builtinRoles = map[string]RoleSpec{
	RoleVillager: {Name: RoleVillager, Camp: CampVillager},
	RoleWerewolf: {Name: RoleWerewolf, Camp: CampWolf, Wolf: true,
		Actions: []string{ActionWerewolfKill}},
	RoleWolfKing: {Name: RoleWolfKing, Camp: CampWolf, Wolf: true,
		Actions: []string{ActionWerewolfKill}},
	RoleNightmare: {Name: RoleNightmare, Camp: CampWolf, Wolf: true,
		Actions: []string{ActionWerewolfKill, ActionNightmareFear}},
	RoleWolfElder: {Name: RoleWolfElder, Camp: CampWolf, Wolf: true,
		Actions: []string{ActionWerewolfKill}},
	RoleWolfYounger: {Name: RoleWolfYounger, Camp: CampWolf, Wolf: true,
		Actions: []string{ActionWerewolfKill, ActionWolfBrotherKill}},
	RoleSeer: {Name: RoleSeer, Camp: CampDeity,
		Actions: []string{ActionSeerCheck}},
	RoleWitch: {Name: RoleWitch, Camp: CampDeity,
		Actions: []string{ActionWitchAntidote, ActionWitchPoison}},
	RoleGuard: {Name: RoleGuard, Camp: CampDeity,
		Actions: []string{ActionGuardProtect}},
	RoleHunter: {Name: RoleHunter, Camp: CampDeity},
	RoleDreamWeaver: {Name: RoleDreamWeaver, Camp: CampWolf,
		Actions: []string{ActionDreamWeaverLink}},
	RoleDarkMerchant: {Name: RoleDarkMerchant, Camp: CampDeity,
		Actions: []string{ActionDarkMerchantTrade}},
}

// roleGrantsAction reports whether any of the seat's living identities list
// the action in their spec.
func roleGrantsAction(r *Room, seat int, actionID string) bool {
	s := r.Seat(seat)
	if s == nil {
		return false
	}
	for _, role := range s.LivingRoles() {
		spec, ok := r.roleSpec(role)
		if !ok {
			continue
		}
		if slices.Contains(spec.Actions, actionID) {
			// The younger wolf brother sits out of the pack while the
			// elder is alive.
			if actionID == ActionWerewolfKill && role == RoleWolfYounger && r.SeatWithRole(RoleWolfElder) != 0 {
				continue
			}
			return true
		}
	}
	return false
}

// seatMayUse reports whether the seat may use the action at all: either a
// living identity grants it, or it was granted as a bonus (revenge shots,
// traded merchant goods).
func seatMayUse(r *Room, seat int, actionID string) bool {
	return roleGrantsAction(r, seat, actionID) || r.Scratch.hasBonus(seat, actionID)
}

// NewDefaultRegistry builds the registry with the full built-in catalog.
func NewDefaultRegistry() *Registry {
	g := NewRegistry()
	for _, a := range []RoleAction{
		newWerewolfKill(),
		newNightmareFear(),
		newGuardProtect(),
		newWitchAntidote(),
		newWitchPoison(),
		newSeerCheck(),
		newHunterRevenge(),
		newWolfKingRevenge(),
		newDreamWeaverLink(),
		newDarkMerchantTrade(),
		newMerchantGun(),
		newWolfBrotherKill(),
	} {
		// Built-in ids are unique by construction.
		if err := g.Register(a); err != nil {
			panic(err)
		}
	}
	return g
}
