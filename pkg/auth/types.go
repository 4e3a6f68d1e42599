package auth

// Role is a coarse capability grant carried in the access token.
type Role string

const (
	// RoleAdmin implies every other role.
	RoleAdmin Role = "admin"
	// RoleInspector may start inspections, record responses, and submit.
	RoleInspector Role = "inspector"
	// RoleReviewer may approve or reject submitted inspections and
	// reassign or close corrective actions.
	RoleReviewer Role = "reviewer"
	// RoleActionOwner may start, note, and close actions assigned to them.
	RoleActionOwner Role = "action_owner"
)

// Actor is the authenticated entity behind a request.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the actor holds the role. Admin implies all.
func (a *Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == RoleAdmin || r == role {
			return true
		}
	}
	return false
}

// IsReviewer reports whether the actor may exercise reviewer gates
// (approve/reject, reassign, close on behalf of others).
func (a *Actor) IsReviewer() bool {
	return a.HasRole(RoleReviewer)
}
