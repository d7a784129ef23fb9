package models

// UserRole represents the roles carried in identity tokens.
type UserRole string

const (
	RoleCitizen      UserRole = "CITIZEN"
	RoleAdmin        UserRole = "ADMIN"
	RoleSuperAdmin   UserRole = "SUPER_ADMIN"
	RoleFieldOfficer UserRole = "FIELD_OFFICER"
)

// StaffRoles lists every municipal role allowed to triage complaints.
var StaffRoles = []UserRole{RoleAdmin, RoleSuperAdmin, RoleFieldOfficer}

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	switch r {
	case RoleCitizen, RoleAdmin, RoleSuperAdmin, RoleFieldOfficer:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to municipal staff.
func (r UserRole) IsStaff() bool {
	for _, staff := range StaffRoles {
		if r == staff {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}
