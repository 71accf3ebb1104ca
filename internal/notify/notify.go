// Package notify raises desktop notifications for messages that arrive on
// a page the user is not looking at.
package notify

import (
	"strings"

	"github.com/gen2brain/beeep"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
)

const (
	appName       = "ostruka"
	maxBodyWidth  = 120
	truncatedTail = "..."
)

// Notifier shows a notification.
type Notifier interface {
	Notify(title, message string) error
}

// notifyFunc is swapped out by tests.
var notifyFunc = beeep.Notify

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	logger zerolog.Logger
}

func NewDesktop(logger zerolog.Logger) *Desktop {
	return &Desktop{logger: logger}
}

func (d *Desktop) Notify(title, message string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = appName
	}
	message = runewidth.Truncate(strings.TrimSpace(message), maxBodyWidth, truncatedTail)

	d.logger.Debug().Str("title", title).Msg("sending notification")
	if err := notifyFunc(title, message, ""); err != nil {
		d.logger.Warn().Err(err).Str("title", title).Msg("notification failed")
		return err
	}
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string) error { return nil }

// MessageTitle is the notification title for a message on page.
func MessageTitle(page string) string {
	return appName + ": " + page
}
