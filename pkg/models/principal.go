package models

// Principal is the resolved identity attached to a request. Any of the three
// fields may be nil: an anonymous request has none, a session-authenticated
// request has a User, and an API-key-authenticated request has all three
// (the app, its creator, and its owning team).
//
// When both credential paths resolve, the app context takes precedence for
// app-scoped procedures and the session user for user-scoped ones; the
// ambiguity is a precedence rule, not an error.
type Principal struct {
	User *User
	App  *App
	Team *Team
}

// IsAnonymous reports whether no credential resolved.
func (p Principal) IsAnonymous() bool {
	return p.User == nil && p.App == nil
}
