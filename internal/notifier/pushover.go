package notifier

import (
	"errors"
	"fmt"
	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/types"
	"log/slog"
	"net/url"
)

type ShoutrrrSender interface {
	Send(message string, params *types.Params) []error
}

// PushoverNotifier sends push notifications through Pushover.
type PushoverNotifier struct {
	Logger *slog.Logger
	Sender ShoutrrrSender
}

var _ Notifier = &PushoverNotifier{}

// NewPushoverNotifier returns a PushoverNotifier for the provided Pushover application token and user key.
func NewPushoverNotifier(apiToken, userKey string, logger *slog.Logger) (*PushoverNotifier, error) {
	sender, err := shoutrrr.CreateSender(PushoverURL(apiToken, userKey))
	if err != nil {
		return nil, fmt.Errorf("pushover: %w", err)
	}
	return &PushoverNotifier{Logger: logger, Sender: sender}, nil
}

// PushoverURL returns the shoutrrr service URL for Pushover.
func PushoverURL(apiToken, userKey string) string {
	u := url.URL{
		Scheme: "pushover",
		User:   url.UserPassword("shoutrrr", apiToken),
		Host:   userKey,
		Path:   "/",
	}
	return u.String()
}

func (p *PushoverNotifier) Notify(title, message string) {
	params := types.Params{"title": title}
	if err := errors.Join(p.Sender.Send(message, &params)...); err != nil {
		p.Logger.Error("notifier failed to send push notification", "err", err)
	}
}
