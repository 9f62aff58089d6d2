package types

// User is the authenticated identity attached to a connection. It is
// immutable once attached, except for the admin flag which is re-evaluated
// per request by the Administrators collaborator.
type User struct {
	Id     string `json:"id"` // e-mail, unique!
	Email  string `json:"email"`
	Bearer string `json:"-"` // raw credential, never serialized
}
