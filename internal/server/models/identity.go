package models

import "strings"

// Identity is the caller as established by the external identity provider.
// The zero value is the anonymous caller.
type Identity struct {
	UserID     string
	ProviderID string
	Email      string
}

// Anonymous reports whether no attribute is populated.
func (i Identity) Anonymous() bool {
	return i.UserID == "" && i.ProviderID == "" && i.Email == ""
}

// Attribute returns the value of the attribute named by kind.
func (i Identity) Attribute(kind IdentityKind) string {
	switch kind {
	case KindUserID:
		return i.UserID
	case KindProviderID:
		return i.ProviderID
	case KindEmail:
		return i.Email
	default:
		return ""
	}
}

// Matches reports whether the populated attribute of entry's kind equals the
// entry value. Empty values never match; emails compare case-insensitively.
func (i Identity) Matches(entry AccessEntry) bool {
	v := i.Attribute(entry.Kind)
	if v == "" || entry.Value == "" {
		return false
	}
	if entry.Kind == KindEmail {
		return strings.EqualFold(v, entry.Value)
	}
	return v == entry.Value
}
