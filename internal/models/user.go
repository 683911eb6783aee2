package models

// UserRecord is the value object a UserDirectory hands to the login flow.
// Roles are opaque pass-through; policy evaluation happens outside this
// service.
type UserRecord struct {
	ID       string
	Username string
	Active   bool
	Roles    []string
}
