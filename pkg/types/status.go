package types

import "time"

// ConnState describes where an account watcher is in its connect/idle cycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateReconciling
	StateIdle
	StateBackoff
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReconciling:
		return "reconciling"
	case StateIdle:
		return "idle"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Connected reports whether the state implies an open IMAP session.
func (s ConnState) Connected() bool {
	return s == StateReconciling || s == StateIdle
}

// MessageSummary holds the header fields of one newly-arrived message,
// just enough to render a notification.
type MessageSummary struct {
	UID     uint32    `json:"uid"`
	Sender  string    `json:"sender"`
	Subject string    `json:"subject"`
	Snippet string    `json:"snippet,omitempty"`
	Date    time.Time `json:"date"`
}

// AccountStatus is an immutable snapshot of one account watcher. Watchers
// publish a fresh value on every state change; nothing mutates it afterwards.
type AccountStatus struct {
	Account     string    `json:"account"`
	State       ConnState `json:"state"`
	HasUnseen   bool      `json:"has_unseen"`
	UnseenCount int       `json:"unseen_count"`
	Tooltip     string    `json:"tooltip"`
	LastError   string    `json:"last_error,omitempty"`
	Retries     int       `json:"retries,omitempty"`
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// GlobalStatus is the aggregate over all accounts, rebuilt by the aggregator
// whenever any AccountStatus changes.
type GlobalStatus struct {
	AnyUnseen bool            `json:"any_unseen"`
	Accounts  []AccountStatus `json:"accounts"`
}

// IconState selects which tray icon is shown.
type IconState int

const (
	IconDisconnected IconState = iota
	IconConnected
	IconNewMail
)

func (s IconState) String() string {
	switch s {
	case IconDisconnected:
		return "disconnected"
	case IconConnected:
		return "connected"
	case IconNewMail:
		return "new-mail"
	default:
		return "unknown"
	}
}
