package watch

import "sort"

// Reconciler tracks the unseen set for one account across fetches and
// decides when a delta warrants a notification.
type Reconciler struct {
	prev      UIDSet
	baselined bool
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Unseen is the new unseen set, replacing the previous one wholesale.
	Unseen UIDSet
	// Arrived holds UIDs unseen now that were not unseen before, ascending.
	Arrived []uint32
	// Vanished holds UIDs unseen before that are gone now (read or
	// deleted), ascending. Never triggers a notification.
	Vanished []uint32
	// Notify is true when Arrived is non-empty and this is not the first
	// fetch of the session.
	Notify bool
}

// NewReconciler returns a reconciler with no baseline.
func NewReconciler() *Reconciler {
	return &Reconciler{prev: NewUIDSet()}
}

// Reset drops all per-session state. Must be called after every (re)connect:
// UIDs are only stable within one session, and the first fetch of a fresh
// session reports the pre-existing backlog, which must not be announced as
// new mail.
func (r *Reconciler) Reset() {
	r.prev = NewUIDSet()
	r.baselined = false
}

// Reconcile computes the delta between the previous unseen set and current,
// and advances the tracked state.
func (r *Reconciler) Reconcile(current []uint32) Result {
	curr := NewUIDSet(current...)

	var arrived, vanished []uint32
	for uid := range curr {
		if !r.prev.Contains(uid) {
			arrived = append(arrived, uid)
		}
	}
	for uid := range r.prev {
		if !curr.Contains(uid) {
			vanished = append(vanished, uid)
		}
	}
	sort.Slice(arrived, func(i, j int) bool { return arrived[i] < arrived[j] })
	sort.Slice(vanished, func(i, j int) bool { return vanished[i] < vanished[j] })

	res := Result{
		Unseen:   curr,
		Arrived:  arrived,
		Vanished: vanished,
		Notify:   r.baselined && len(arrived) > 0,
	}

	r.prev = curr
	r.baselined = true
	return res
}
