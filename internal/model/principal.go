package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleProjectManager   Role = "PROJECT_MANAGER"
	RoleQuantitySurveyor Role = "QUANTITY_SURVEYOR"
	RoleViewer           Role = "VIEWER"
)

// Principal is the authenticated caller, already tenant-scoped by the auth
// layer.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsProjectManager() bool {
	return p.Role == RoleProjectManager
}

func (p Principal) IsQuantitySurveyor() bool {
	return p.Role == RoleQuantitySurveyor
}

func (p Principal) IsViewer() bool {
	return p.Role == RoleViewer
}
