package watch

// UIDSet is the set of message UIDs currently known unseen for one account.
// It is owned by the account's watcher and replaced wholesale on every
// reconciliation pass; published snapshots only ever carry derived values.
type UIDSet map[uint32]struct{}

// NewUIDSet builds a set from a list of UIDs.
func NewUIDSet(uids ...uint32) UIDSet {
	s := make(UIDSet, len(uids))
	for _, uid := range uids {
		s[uid] = struct{}{}
	}
	return s
}

// Contains reports whether uid is in the set.
func (s UIDSet) Contains(uid uint32) bool {
	_, ok := s[uid]
	return ok
}

// Len returns the number of UIDs in the set.
func (s UIDSet) Len() int { return len(s) }

// Equal reports whether both sets hold the same UIDs.
func (s UIDSet) Equal(other UIDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for uid := range s {
		if !other.Contains(uid) {
			return false
		}
	}
	return true
}
