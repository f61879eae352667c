package principal

import (
	"strconv"
)

// Kind distinguishes the two account variants credits are tracked under.
type Kind string

const (
	KindGuest Kind = "guest"
	KindUser  Kind = "user"
)

// Principal is the unit a credit balance belongs to: either an anonymous
// guest identified by an opaque client-supplied id, or a signed-in user.
type Principal struct {
	Kind    Kind
	GuestID string
	UserID  uint
}

// Guest builds a guest principal from the opaque client id.
func Guest(guestID string) Principal {
	return Principal{Kind: KindGuest, GuestID: guestID}
}

// User builds a principal for a signed-in user.
func User(userID uint) Principal {
	return Principal{Kind: KindUser, UserID: userID}
}

// IsUser reports whether the principal is a signed-in user.
func (p Principal) IsUser() bool {
	return p.Kind == KindUser
}

// IsZero reports whether no identity is present at all.
func (p Principal) IsZero() bool {
	return p.GuestID == "" && p.UserID == 0
}

// OwnerColumns returns the (owner_type, owner_id) pair used by tables that
// store resources for either principal variant.
func (p Principal) OwnerColumns() (string, string) {
	if p.IsUser() {
		return string(KindUser), strconv.FormatUint(uint64(p.UserID), 10)
	}
	return string(KindGuest), p.GuestID
}
