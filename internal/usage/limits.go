package usage

import "github.com/uclf/legal-aid-portal/pkg/models"

// Limits is the daily allowance of one tier.
type Limits struct {
	Queries int    `json:"queries"`
	Uploads int    `json:"uploads"`
	Label   string `json:"label"`
}

var (
	guestLimits      = Limits{Queries: 5, Uploads: 1, Label: "Guest Access"}
	studentLimits    = Limits{Queries: 15, Uploads: 5, Label: "Student Tier"}
	associateLimits  = Limits{Queries: 30, Uploads: 10, Label: "Associate Tier"}
	fullMemberLimits = Limits{Queries: 40, Uploads: 15, Label: "Full Member Tier"}
)

// LimitsFor returns the quota of a tier. Admin uses Full Member limits.
func LimitsFor(r models.Role) Limits {
	switch r {
	case models.RoleGuest:
		return guestLimits
	case models.RoleStudent:
		return studentLimits
	case models.RoleAssociate:
		return associateLimits
	case models.RoleFullMember, models.RoleAdmin:
		return fullMemberLimits
	}
	return guestLimits
}

// CanUpgrade reports whether a higher membership would raise the limits.
func CanUpgrade(r models.Role) bool {
	switch r {
	case models.RoleGuest, models.RoleStudent, models.RoleAssociate:
		return true
	case models.RoleFullMember, models.RoleAdmin:
		return false
	}
	return true
}
