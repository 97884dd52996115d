// Package watch implements the per-account watch engine: a state machine
// that connects, reconciles the unseen set, sits in IDLE, and backs off on
// failure, publishing immutable status snapshots as it goes.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonhoo/buzz/internal/email"
	"github.com/jonhoo/buzz/pkg/types"
)

// Session is the slice of the IMAP session a watcher drives. Implemented by
// *email.Session; tests substitute fakes.
type Session interface {
	SelectInbox() error
	Unseen() ([]uint32, error)
	Summaries(uids []uint32) ([]types.MessageSummary, error)
	IdleWait(ctx context.Context, timeout time.Duration) (email.IdleOutcome, error)
	Close() error
}

// Connector opens a fresh authenticated session.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Session, error) { return f(ctx) }

// Event is published by a watcher on every state change. The embedded
// status is a value copy; the aggregator may hold it indefinitely.
type Event struct {
	Status  types.AccountStatus
	Arrived []types.MessageSummary
	Notify  bool
}

// Config tunes one watcher. Zero durations select defaults.
type Config struct {
	Account     string
	IdleTimeout time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Watcher drives the connect, select, idle, reconcile loop for one account.
// All fields are owned by the single Run goroutine.
type Watcher struct {
	account     string
	connector   Connector
	events      chan<- Event
	idleTimeout time.Duration
	backoff     *Backoff
	rec         *Reconciler
	log         *logrus.Entry

	state       types.ConnState
	unseen      UIDSet
	lastErr     string
	nextAttempt time.Time
}

// New creates a watcher publishing events on the given channel.
func New(cfg Config, connector Connector, events chan<- Event, logger *logrus.Logger) *Watcher {
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &Watcher{
		account:     cfg.Account,
		connector:   connector,
		events:      events,
		idleTimeout: idleTimeout,
		backoff:     NewBackoff(cfg.BackoffBase, cfg.BackoffMax),
		rec:         NewReconciler(),
		log:         logger.WithField("account", cfg.Account),
		state:       types.StateDisconnected,
		unseen:      NewUIDSet(),
	}
}

// Run loops until ctx is cancelled. Failures never escape: every error is
// converted into a backoff and retried indefinitely, so one broken account
// degrades on its own without affecting its siblings.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		w.setState(ctx, types.StateConnecting)
		sess, err := w.connector.Connect(ctx)
		if err != nil {
			w.failCold(ctx, err)
			continue
		}
		if err := sess.SelectInbox(); err != nil {
			sess.Close() //nolint:errcheck
			w.failCold(ctx, err)
			continue
		}

		w.backoff.Reset()
		w.rec.Reset()
		serveErr := w.serve(ctx, sess)

		// release the session before any backoff sleep
		if err := sess.Close(); err != nil {
			w.log.WithError(err).Debug("Error closing session")
		}
		if serveErr != nil {
			w.failWarm(ctx, serveErr)
		}
	}
}

// serve drives reconcile/idle until the session dies or ctx is cancelled.
// It returns nil on cancellation and the fatal session error otherwise.
func (w *Watcher) serve(ctx context.Context, sess Session) error {
	for {
		w.setState(ctx, types.StateReconciling)

		current, err := sess.Unseen()
		if err != nil {
			return err
		}

		res := w.rec.Reconcile(current)

		var arrived []types.MessageSummary
		if res.Notify {
			arrived, err = sess.Summaries(res.Arrived)
			if err != nil {
				return err
			}
		}

		w.unseen = res.Unseen
		w.lastErr = ""
		w.state = types.StateIdle
		w.publish(ctx, Event{
			Status:  w.status(),
			Arrived: arrived,
			Notify:  res.Notify && len(arrived) > 0,
		})

		outcome, err := sess.IdleWait(ctx, w.idleTimeout)
		switch outcome {
		case email.IdleChanged, email.IdleTimedOut:
			// fall through to the next reconcile
		case email.IdleAborted:
			return nil
		default:
			if err == nil {
				err = &email.IdleError{}
			}
			return err
		}
	}
}

// failCold handles a failure before any session was established; the retry
// counter keeps growing across consecutive attempts.
func (w *Watcher) failCold(ctx context.Context, err error) {
	w.log.WithError(err).Warn("Connection attempt failed")
	w.sleepBackoff(ctx, err)
}

// failWarm handles the loss of an established session. The curve restarts
// at the base delay: a connection that worked moments ago deserves a faster
// retry than one that never came up.
func (w *Watcher) failWarm(ctx context.Context, err error) {
	w.log.WithError(err).Warn("Connection lost")
	w.backoff.Reset()
	w.sleepBackoff(ctx, err)
}

func (w *Watcher) sleepBackoff(ctx context.Context, cause error) {
	delay := w.backoff.Next()
	w.lastErr = cause.Error()
	w.nextAttempt = time.Now().Add(delay)
	w.setState(ctx, types.StateBackoff)

	w.log.WithFields(logrus.Fields{
		"attempt": w.backoff.Attempts(),
		"delay":   delay,
	}).Info("Backing off before retry")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (w *Watcher) setState(ctx context.Context, state types.ConnState) {
	w.state = state
	w.publish(ctx, Event{Status: w.status()})
}

func (w *Watcher) publish(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// status builds the immutable snapshot published with every event.
func (w *Watcher) status() types.AccountStatus {
	st := types.AccountStatus{
		Account:     w.account,
		State:       w.state,
		HasUnseen:   w.unseen.Len() > 0,
		UnseenCount: w.unseen.Len(),
		LastError:   w.lastErr,
	}
	if w.state == types.StateBackoff {
		st.Retries = w.backoff.Attempts()
		st.NextAttempt = w.nextAttempt
	}
	st.Tooltip = tooltip(st)
	return st
}

// tooltip renders the one-line per-account text shown by the tray icon.
// Raw protocol errors never reach it.
func tooltip(st types.AccountStatus) string {
	switch st.State {
	case types.StateBackoff:
		return fmt.Sprintf("%s: unreachable, retry %d pending", st.Account, st.Retries)
	case types.StateConnecting:
		return fmt.Sprintf("%s: connecting", st.Account)
	case types.StateDisconnected:
		return fmt.Sprintf("%s: disconnected", st.Account)
	default:
		if st.UnseenCount == 1 {
			return fmt.Sprintf("%s: 1 unseen message", st.Account)
		}
		return fmt.Sprintf("%s: %d unseen messages", st.Account, st.UnseenCount)
	}
}
