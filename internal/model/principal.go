package model

// Roles carried in the identity provider's "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleOwner    = "OWNER"
)

// Principal is the authenticated caller as asserted by the identity
// provider.  The user ID is opaque and stable; email and name are only
// used for notifications.
type Principal struct {
	UserID string
	Role   string
	Email  string
	Name   string
}
