package domain

import "slices"

// Identity is a registered user together with the session identifiers
// issued to it at login.
// Username is carried by the key of the persisted users document.
type Identity struct {
	Username     string   `json:"-"`
	PasswordHash string   `json:"password_hash"`
	Sessions     []string `json:"sessions"`
}

// HasSession reports whether sessionID was issued to this identity.
func (i *Identity) HasSession(sessionID string) bool {
	return slices.Contains(i.Sessions, sessionID)
}

// AddSession records sessionID, ignoring duplicates.
func (i *Identity) AddSession(sessionID string) {
	if i.HasSession(sessionID) {
		return
	}
	i.Sessions = append(i.Sessions, sessionID)
}

// RemoveSession drops sessionID and reports whether it was present.
func (i *Identity) RemoveSession(sessionID string) bool {
	idx := slices.Index(i.Sessions, sessionID)
	if idx < 0 {
		return false
	}
	i.Sessions = slices.Delete(i.Sessions, idx, idx+1)
	return true
}

// Clone returns a deep copy so callers cannot mutate store state.
func (i *Identity) Clone() *Identity {
	c := *i
	c.Sessions = slices.Clone(i.Sessions)
	if c.Sessions == nil {
		c.Sessions = []string{}
	}
	return &c
}
