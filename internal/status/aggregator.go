// Package status merges per-account watcher snapshots into the single
// global signal consumed by the tray icon, and forwards notification
// requests to the dispatcher.
package status

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jonhoo/buzz/internal/watch"
	"github.com/jonhoo/buzz/pkg/types"
)

// Sink receives tray updates. Implemented by the tray adapter; headless runs
// use NopSink.
type Sink interface {
	SetIcon(state types.IconState)
	SetTooltip(lines []string)
}

// NopSink discards tray updates.
type NopSink struct{}

func (NopSink) SetIcon(types.IconState) {}
func (NopSink) SetTooltip([]string)     {}

// Notifier renders arrived-mail notifications. Implemented by the
// notification dispatcher.
type Notifier interface {
	Dispatch(st types.AccountStatus, arrived []types.MessageSummary)
}

// Aggregator owns the global status. It consumes watcher events from a
// single channel, so updates from concurrent watchers are serialized here
// and the merge itself never blocks on I/O.
type Aggregator struct {
	events   <-chan watch.Event
	sink     Sink
	notifier Notifier
	log      *logrus.Logger

	mu       sync.RWMutex
	order    []string
	accounts map[string]types.AccountStatus
}

// NewAggregator creates an aggregator for the named accounts. The order of
// names fixes the tooltip line order.
func NewAggregator(names []string, events <-chan watch.Event, sink Sink, notifier Notifier, logger *logrus.Logger) *Aggregator {
	a := &Aggregator{
		events:   events,
		sink:     sink,
		notifier: notifier,
		log:      logger,
		order:    append([]string(nil), names...),
		accounts: make(map[string]types.AccountStatus, len(names)),
	}
	for _, name := range names {
		a.accounts[name] = types.AccountStatus{
			Account: name,
			State:   types.StateDisconnected,
			Tooltip: name + ": disconnected",
		}
	}
	return a
}

// Run consumes events until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			a.log.WithFields(logrus.Fields{
				"account": ev.Status.Account,
				"state":   ev.Status.State.String(),
			}).Debug("Account status updated")
			a.Apply(ev.Status)
			global := a.Global()
			a.sink.SetIcon(iconFor(global))
			a.sink.SetTooltip(a.TooltipLines())
			if ev.Notify && len(ev.Arrived) > 0 {
				a.notifier.Dispatch(ev.Status, ev.Arrived)
			}
		}
	}
}

// Apply records the latest snapshot for one account. Keeping only the most
// recent value per account makes the merge commutative across accounts:
// arrival order between different accounts cannot change the result.
func (a *Aggregator) Apply(st types.AccountStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, known := a.accounts[st.Account]; !known {
		a.order = append(a.order, st.Account)
	}
	a.accounts[st.Account] = st
}

// Global rebuilds the aggregate snapshot from the latest per-account values.
func (a *Aggregator) Global() types.GlobalStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	global := types.GlobalStatus{
		Accounts: make([]types.AccountStatus, 0, len(a.accounts)),
	}
	for _, name := range a.sortedNames() {
		st := a.accounts[name]
		global.Accounts = append(global.Accounts, st)
		if st.HasUnseen {
			global.AnyUnseen = true
		}
	}
	return global
}

// TooltipLines returns one tooltip line per account, in config order.
func (a *Aggregator) TooltipLines() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	lines := make([]string, 0, len(a.accounts))
	for _, name := range a.sortedNames() {
		lines = append(lines, a.accounts[name].Tooltip)
	}
	return lines
}

// sortedNames returns config order first, then any stragglers by name.
// Callers must hold at least the read lock.
func (a *Aggregator) sortedNames() []string {
	names := append([]string(nil), a.order...)
	if len(names) < len(a.accounts) {
		extra := make([]string, 0, len(a.accounts)-len(names))
		known := make(map[string]bool, len(names))
		for _, n := range names {
			known[n] = true
		}
		for n := range a.accounts {
			if !known[n] {
				extra = append(extra, n)
			}
		}
		sort.Strings(extra)
		names = append(names, extra...)
	}
	return names
}

// iconFor maps the aggregate onto the three tray icon states.
func iconFor(global types.GlobalStatus) types.IconState {
	anyConnected := false
	for _, st := range global.Accounts {
		if st.State.Connected() {
			anyConnected = true
			break
		}
	}
	switch {
	case global.AnyUnseen:
		return types.IconNewMail
	case anyConnected:
		return types.IconConnected
	default:
		return types.IconDisconnected
	}
}
