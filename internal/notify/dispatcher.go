// Package notify renders arrived-mail deltas into desktop notifications and
// runs the optional per-account post-notification command.
package notify

import (
	"fmt"
	"html"
	"os/exec"
	"sort"
	"strings"
	"sync"

	notify "github.com/TheCreeper/go-notify"
	"github.com/sirupsen/logrus"

	"github.com/jonhoo/buzz/internal/config"
	"github.com/jonhoo/buzz/pkg/types"
)

const appName = "buzz"

// Dispatcher delivers notifications over D-Bus. One notification slot is
// kept per account so repeat deltas update the existing bubble instead of
// stacking new ones.
type Dispatcher struct {
	shell    string
	commands map[string]string
	log      *logrus.Logger

	mu      sync.Mutex
	lastIDs map[string]uint32
}

// NewDispatcher builds a dispatcher from the configured accounts.
func NewDispatcher(accounts []config.AccountConfig, logger *logrus.Logger) *Dispatcher {
	commands := make(map[string]string, len(accounts))
	for i := range accounts {
		if accounts[i].NotifyCmd != "" {
			commands[accounts[i].Name] = accounts[i].NotifyCmd
		}
	}
	return &Dispatcher{
		shell:    "sh",
		commands: commands,
		log:      logger,
		lastIDs:  make(map[string]uint32),
	}
}

// Dispatch shows one notification for the arrived messages and fires the
// account's post-notification command, if any. Delivery failures are logged
// and never propagate back into the watcher's state machine.
func (d *Dispatcher) Dispatch(st types.AccountStatus, arrived []types.MessageSummary) {
	title := fmt.Sprintf("@%s has new mail (%d)", st.Account, st.UnseenCount)
	body := renderBody(arrived)

	ntf := notify.NewNotification(title, body)
	ntf.AppName = appName
	ntf.AppIcon = "notification-message-email"
	ntf.Hints = map[string]interface{}{"category": "email.arrived"}

	d.mu.Lock()
	ntf.ReplacesID = d.lastIDs[st.Account]
	d.mu.Unlock()

	if id, err := ntf.Show(); err != nil {
		d.log.WithError(err).WithField("account", st.Account).Error("Failed to show notification")
	} else {
		d.mu.Lock()
		d.lastIDs[st.Account] = id
		d.mu.Unlock()
	}

	if command, ok := d.commands[st.Account]; ok {
		go d.runCommand(st.Account, command)
	}
}

// renderBody lists the arrived messages newest first, one quoted subject per
// line, HTML-escaped so hostile headers cannot inject markup into the
// notification backend.
func renderBody(arrived []types.MessageSummary) string {
	sorted := append([]types.MessageSummary(nil), arrived...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	var b strings.Builder
	for _, msg := range sorted {
		line := msg.Subject
		if msg.Sender != "" {
			line = msg.Sender + ": " + line
		}
		b.WriteString("> ")
		b.WriteString(html.EscapeString(line))
		b.WriteByte('\n')
		if msg.Snippet != "" {
			b.WriteString("  ")
			b.WriteString(html.EscapeString(msg.Snippet))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// runCommand fires the post-notification command, logging the outcome; it
// is purely advisory and its failure is never surfaced to the watcher.
func (d *Dispatcher) runCommand(account, command string) {
	log := d.log.WithField("account", account)

	err := exec.Command(d.shell, "-c", command).Run()
	if err == nil {
		return
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		if code := exitErr.ExitCode(); code >= 0 {
			log.WithField("exit_code", code).Warn("Notification command exited non-zero")
		} else {
			log.Warn("Notification command was terminated by a signal")
		}
		return
	}
	log.WithError(err).Warn("Could not execute notification command")
}
