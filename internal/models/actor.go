package models

// Role is supplied by the identity collaborator and trusted as-is
type Role string

const (
	RoleParticipant Role = "participant"
	RoleOperator    Role = "operator"
	RoleOwner       Role = "owner"
)

// ParseRole returns the role named by s and whether it is known
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleParticipant, RoleOperator, RoleOwner:
		return Role(s), true
	}
	return "", false
}

// Capability is one permission checked at the service boundary
type Capability int

const (
	CapClaimNumbers Capability = iota
	CapManageDraws
	CapManagePayments
	CapDeleteParticipations
	CapResolveDraws
	CapViewLedger
	CapViewAudit
	CapVerifyReceipts
)

var capabilityNames = map[Capability]string{
	CapClaimNumbers:         "claim numbers",
	CapManageDraws:          "manage draws",
	CapManagePayments:       "manage payments",
	CapDeleteParticipations: "delete participations",
	CapResolveDraws:         "resolve draws",
	CapViewLedger:           "view ledger",
	CapViewAudit:            "view audit log",
	CapVerifyReceipts:       "verify receipts",
}

func (c Capability) String() string {
	return capabilityNames[c]
}

var operatorCaps = []Capability{
	CapClaimNumbers, CapManagePayments, CapDeleteParticipations,
	CapResolveDraws, CapViewLedger, CapViewAudit, CapVerifyReceipts,
}

var roleCapabilities = map[Role]map[Capability]bool{
	RoleParticipant: capSet(CapClaimNumbers),
	RoleOperator:    capSet(operatorCaps...),
	RoleOwner:       capSet(append([]Capability{CapManageDraws}, operatorCaps...)...),
}

func capSet(caps ...Capability) map[Capability]bool {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Actor is the caller of a core operation
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is used for scheduled, non-human state changes
var SystemActor = Actor{ID: "system", Role: RoleOwner}

// Can reports whether the actor's role grants c
func (a Actor) Can(c Capability) bool {
	if a.ID == "" {
		return false
	}
	return roleCapabilities[a.Role][c]
}
