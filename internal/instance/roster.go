package instance

import "sort"

// RosterState distinguishes a roster that was never populated from one that
// is known to be empty.
type RosterState int

const (
	// RosterAbsent means no membership information exists (direct chats, or
	// groups whose members were never queried).
	RosterAbsent RosterState = iota
	// RosterEmpty means membership is known and nobody is online.
	RosterEmpty
	// RosterPopulated means at least one member is online.
	RosterPopulated
)

func (s RosterState) String() string {
	switch s {
	case RosterEmpty:
		return "empty"
	case RosterPopulated:
		return "populated"
	default:
		return "absent"
	}
}

// Roster is the set of online members of a group page. The zero value is an
// absent roster.
type Roster struct {
	members map[string]struct{}
}

// State reports whether the roster is absent, empty or populated.
func (r *Roster) State() RosterState {
	switch {
	case r.members == nil:
		return RosterAbsent
	case len(r.members) == 0:
		return RosterEmpty
	default:
		return RosterPopulated
	}
}

// Add unions names into the roster, initializing it on first use.
func (r *Roster) Add(names ...string) {
	if r.members == nil {
		r.members = make(map[string]struct{}, len(names))
	}
	for _, name := range names {
		r.members[name] = struct{}{}
	}
}

// Remove subtracts names from the roster. Unknown names are ignored and an
// absent roster stays absent.
func (r *Roster) Remove(names ...string) {
	for _, name := range names {
		delete(r.members, name)
	}
}

// Members returns the sorted member names.
func (r *Roster) Members() []string {
	if len(r.members) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.members))
	for name := range r.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
