// Package tray renders the aggregate mail status as a system tray icon with
// a per-account tooltip. It is a thin adapter; all state lives in the
// aggregator.
package tray

import (
	"os"
	"strings"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/jonhoo/buzz/internal/config"
	"github.com/jonhoo/buzz/pkg/types"
)

// Tray implements the aggregator's sink on top of the system tray.
type Tray struct {
	icons map[types.IconState][]byte
	log   *logrus.Logger
}

// Run takes over the calling goroutine for the tray main loop (a systray
// requirement) and runs app on a fresh goroutine once the tray is ready.
// The Quit menu item and tray teardown both call cancel; the tray exits when
// app returns. Run reports app's error.
func Run(cancel func(), icons config.IconConfig, logger *logrus.Logger, app func(t *Tray) error) error {
	t := &Tray{log: logger}
	var appErr error

	systray.Run(func() {
		t.loadIcons(icons)
		t.SetIcon(types.IconDisconnected)
		systray.SetTitle("buzz")
		t.SetTooltip([]string{"buzz: starting"})

		quit := systray.AddMenuItem("Quit", "Stop watching and exit")
		go func() {
			<-quit.ClickedCh
			cancel()
		}()

		go func() {
			appErr = app(t)
			systray.Quit()
		}()
	}, func() {
		cancel()
	})

	return appErr
}

// SetIcon switches the tray icon, if an icon file was configured for the
// state.
func (t *Tray) SetIcon(state types.IconState) {
	if b, ok := t.icons[state]; ok {
		systray.SetIcon(b)
	}
}

// SetTooltip joins the per-account lines into the tray tooltip.
func (t *Tray) SetTooltip(lines []string) {
	systray.SetTooltip(strings.Join(lines, "\n"))
}

func (t *Tray) loadIcons(icons config.IconConfig) {
	t.icons = make(map[types.IconState][]byte, 3)
	for state, path := range map[types.IconState]string{
		types.IconDisconnected: icons.Disconnected,
		types.IconConnected:    icons.Connected,
		types.IconNewMail:      icons.NewMail,
	} {
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.log.WithError(err).WithField("icon", path).Warn("Could not load tray icon")
			continue
		}
		t.icons[state] = b
	}
}
