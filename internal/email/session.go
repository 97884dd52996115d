// Package email owns the IMAP side of the watcher: one authenticated TLS
// connection per account, unseen-message queries, and the IDLE wait.
package email

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"

	"github.com/jonhoo/buzz/internal/config"
	"github.com/jonhoo/buzz/internal/credential"
	"github.com/jonhoo/buzz/pkg/types"
)

const (
	inbox        = "INBOX"
	dialTimeout  = 30 * time.Second
	updateBuffer = 128
	snippetLimit = 120
)

// IdleOutcome tells the watcher why an IDLE wait returned.
type IdleOutcome int

const (
	// IdleChanged means the server pushed a mailbox change.
	IdleChanged IdleOutcome = iota
	// IdleTimedOut means the keepalive interval elapsed with no change.
	IdleTimedOut
	// IdleDisconnected means the connection was severed mid-wait.
	IdleDisconnected
	// IdleAborted means the wait was cancelled by shutdown.
	IdleAborted
)

// Connector opens authenticated sessions for one account. Credentials are
// resolved fresh on every Connect call.
type Connector struct {
	account  config.AccountConfig
	resolver *credential.Resolver
	logger   *logrus.Logger
}

// NewConnector creates a connector for the given account.
func NewConnector(account config.AccountConfig, resolver *credential.Resolver, logger *logrus.Logger) *Connector {
	return &Connector{
		account:  account,
		resolver: resolver,
		logger:   logger,
	}
}

// Connect dials the server over TLS and logs in. Dial failures are
// classified as network or TLS errors; a rejected login is an auth error.
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	secret := c.account.Password
	if secret == "" {
		var err error
		secret, err = c.resolver.Resolve(ctx, c.account.PasswordCmd)
		if err != nil {
			return nil, err
		}
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	cl, err := client.DialWithDialerTLS(dialer, c.account.Addr(), &tls.Config{
		ServerName: c.account.Server,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, classifyDial(err)
	}

	if err := cl.Login(c.account.Username, secret); err != nil {
		cl.Logout() //nolint:errcheck
		return nil, &ConnectError{Kind: ConnectAuth, Err: err}
	}

	log := c.logger.WithField("account", c.account.Name)
	if supported, err := cl.Support("IDLE"); err == nil && !supported {
		// client.Idle degrades to NOOP polling on such servers
		log.Warn("Server does not advertise IDLE, falling back to polling")
	}

	log.Info("Connected to IMAP server")
	return &Session{
		client:  cl,
		log:     log,
		updates: make(chan client.Update, updateBuffer),
	}, nil
}

// Session owns one authenticated IMAP connection. It is only ever used by
// the single watcher goroutine that created it.
type Session struct {
	client  *client.Client
	log     *logrus.Entry
	updates chan client.Update
}

// SelectInbox selects the watched mailbox and starts collecting unilateral
// server updates for the IDLE wait.
func (s *Session) SelectInbox() error {
	if _, err := s.client.Select(inbox, false); err != nil {
		return &SelectError{Mailbox: inbox, Err: err}
	}
	s.client.Updates = s.updates
	return nil
}

// Unseen returns the UIDs of all messages currently lacking the Seen flag.
func (s *Session) Unseen() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, &FetchError{Op: "uid search unseen", Err: err}
	}
	return uids, nil
}

// Summaries fetches sender, subject, date and a short body snippet for the
// given UIDs. Bodies are fetched with BODY.PEEK so the messages stay unseen.
func (s *Session) Summaries(uids []uint32) ([]types.MessageSummary, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var summaries []types.MessageSummary
	for msg := range messages {
		summaries = append(summaries, s.summarize(msg, section))
	}

	if err := <-done; err != nil {
		return nil, &FetchError{Op: "uid fetch summaries", Err: err}
	}
	return summaries, nil
}

// summarize converts one fetched message into a MessageSummary.
func (s *Session) summarize(msg *imap.Message, section *imap.BodySectionName) types.MessageSummary {
	summary := types.MessageSummary{
		UID:     msg.Uid,
		Subject: "<no subject>",
		Date:    msg.InternalDate,
	}

	if msg.Envelope != nil {
		if msg.Envelope.Subject != "" {
			summary.Subject = msg.Envelope.Subject
		}
		if !msg.Envelope.Date.IsZero() {
			summary.Date = msg.Envelope.Date
		}
		if len(msg.Envelope.From) > 0 {
			addr := msg.Envelope.From[0]
			summary.Sender = addr.PersonalName
			if summary.Sender == "" {
				summary.Sender = addr.Address()
			}
		}
	}

	if literal := msg.GetBody(section); literal != nil {
		env, err := enmime.ReadEnvelope(literal)
		if err != nil {
			s.log.WithError(err).WithField("uid", msg.Uid).Debug("Failed to parse message body")
		} else {
			summary.Snippet = snippet(env.Text)
		}
	}

	return summary
}

// snippet collapses whitespace and truncates text for notification display.
func snippet(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= snippetLimit {
		return collapsed
	}
	return string(runes[:snippetLimit])
}

// IdleWait enters IDLE and blocks until the server pushes a mailbox change,
// the timeout elapses, the connection is severed, or ctx is cancelled. An
// outstanding IDLE is always actively terminated, never abandoned, so the
// connection stays in a known state.
func (s *Session) IdleWait(ctx context.Context, timeout time.Duration) (IdleOutcome, error) {
	// a change pushed while we were fetching is already queued
	select {
	case <-s.updates:
		s.drainUpdates()
		return IdleChanged, nil
	default:
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.client.Idle(stop, nil)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		close(stop)
		<-done
		return IdleAborted, ctx.Err()

	case err := <-done:
		// Idle only returns unprompted when the connection is gone.
		return IdleDisconnected, &IdleError{Err: err}

	case <-s.updates:
		close(stop)
		if err := <-done; err != nil {
			return IdleDisconnected, &IdleError{Err: err}
		}
		s.drainUpdates()
		return IdleChanged, nil

	case <-timer.C:
		close(stop)
		if err := <-done; err != nil {
			return IdleDisconnected, &IdleError{Err: err}
		}
		return IdleTimedOut, nil
	}
}

func (s *Session) drainUpdates() {
	for {
		select {
		case <-s.updates:
		default:
			return
		}
	}
}

// Close logs out, falling back to tearing down the TCP connection if the
// server no longer answers.
func (s *Session) Close() error {
	if err := s.client.Logout(); err != nil {
		return s.client.Terminate()
	}
	return nil
}
