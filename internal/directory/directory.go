// Package directory answers role and organization membership questions
// for the scheduling core. The core trusts the identity it is handed and
// only needs to know who a user is, whether they are active, and which
// organization they belong to.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient      Role = "patient"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
	RoleAdmin        Role = "admin"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID             uuid.UUID
	Name           string
	Email          *string
	Role           Role
	OrganizationID *uuid.UUID
	Active         bool
}

type Organization struct {
	ID      uuid.UUID
	OrgType string
	Name    string
}

// Directory is the lookup surface the broadcaster and service consume.
type Directory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// ActiveReceptionists lists every active receptionist belonging to the
	// given organization.
	ActiveReceptionists(ctx context.Context, orgID uuid.UUID) ([]User, error)
}
