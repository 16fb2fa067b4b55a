package domain

import "time"

// Role is the capability a user is currently operating as.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePassenger || r == RoleDriver
}

// AccountType is the set of roles an account holds.
type AccountType string

const (
	AccountPassenger AccountType = "passenger"
	AccountDriver    AccountType = "driver"
	AccountBoth      AccountType = "both"
)

// Valid reports whether a is a known account type.
func (a AccountType) Valid() bool {
	return a == AccountPassenger || a == AccountDriver || a == AccountBoth
}

// Allows reports whether the account type includes role r.
func (a AccountType) Allows(r Role) bool {
	switch a {
	case AccountBoth:
		return r.Valid()
	case AccountDriver:
		return r == RoleDriver
	case AccountPassenger:
		return r == RolePassenger
	}
	return false
}

// User represents an account that may act as passenger, driver, or both.
type User struct {
	ID                string
	Name              string
	Phone             string
	PasswordHash      string
	AccountType       AccountType
	CurrentActiveRole Role
	LastRoleSwitchAt  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
