package notify

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"potwatch/internal/config"
)

// Notifier sends push notifications through a Pushover-compatible
// endpoint. Delivery is fire-and-forget; failures are logged, never
// surfaced to the report path.
type Notifier struct {
	cfg    config.NotifyConfig
	http   *http.Client
	logger *zap.Logger
}

func NewNotifier(cfg config.NotifyConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *Notifier) Notify(title, message string) {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		return
	}

	form := url.Values{}
	form.Set("token", n.cfg.Token)
	form.Set("user", n.cfg.UserKey)
	form.Set("title", title)
	form.Set("message", message)

	resp, err := n.http.Post(n.cfg.URL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		n.logger.Warn("notification failed", zap.String("title", title), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("notification rejected",
			zap.String("title", title), zap.Int("status", resp.StatusCode))
	}
}
