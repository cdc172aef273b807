// Package guard decides whether a navigation inside the kiosk app is allowed
// for a given user role.
package guard

import "strings"

// Policy lets the privileged role go anywhere and confines everyone else,
// including visitors with no session at all, to the limited subtree.
type Policy struct {
	PrivilegedRole string
	LimitedPrefix  string
}

// Decision is the outcome of a single navigation check. When Allow is false,
// Redirect holds the path the navigation should be replaced with.
type Decision struct {
	Allow    bool
	Redirect string
}

func (p Policy) Decide(role, path string) Decision {
	if role != "" && role == p.PrivilegedRole {
		return Decision{Allow: true}
	}
	if p.InLimited(path) {
		return Decision{Allow: true}
	}
	return Decision{Redirect: p.LimitedPrefix}
}

// InLimited reports whether path is the limited prefix itself or below it.
// "/app/stockroom" is not under "/app/stock".
func (p Policy) InLimited(path string) bool {
	prefix := strings.TrimRight(p.LimitedPrefix, "/")
	if path == prefix || path == prefix+"/" {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
