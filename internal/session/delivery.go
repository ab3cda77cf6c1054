package session

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/notify/poll"
	"github.com/nhle/shopfront/internal/notify/realtime"
)

// Mode names the transports behind a session's delivery.
type Mode string

const (
	ModePolling         Mode = "polling"
	ModeRealtime        Mode = "realtime"
	ModeRealtimePolling Mode = "realtime+polling"
)

// SelectDelivery builds the notification delivery for one session. The
// choice is made once: polling alone when the deployment cannot host the
// push channel, otherwise the push channel with polling kept as a
// redundant path unless configured off.
func SelectDelivery(
	cfg *model.AppConfig,
	lister poll.Lister,
	s model.Session,
	log *slog.Logger,
) (notify.Delivery, Mode) {
	poller := poll.New(lister,
		poll.WithInterval(cfg.PollInterval()),
		poll.WithLimit(cfg.Notifications.FetchLimit),
		poll.WithLogger(log),
	)

	if !cfg.RealtimeSupported() {
		return poller, ModePolling
	}

	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	channel := realtime.New(realtime.Config{
		URL:         cfg.Realtime.URL,
		Enabled:     true,
		MaxAttempts: cfg.Realtime.MaxAttempts,
		Backoff:     cfg.RealtimeBackoff(),
		Header:      header,
	}, s.User.ID, log)

	if !cfg.Notifications.RedundantPolling {
		return channel, ModeRealtime
	}
	return notify.Combine(channel, poller), ModeRealtimePolling
}
