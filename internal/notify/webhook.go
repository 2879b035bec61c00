package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Webhook posts unlock events to an external endpoint. Delivery is
// fire-and-forget: every failure is logged and swallowed, callers are
// never blocked on it.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	timeout time.Duration
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.timeout = d }
}

// NewWebhook returns nil when url is empty, which disables notification.
func NewWebhook(url string, opts ...Option) *Webhook {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	w := &Webhook{
		url:     strings.TrimSpace(url),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type unlockEvent struct {
	Event         string    `json:"event"`
	UserID        string    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	At            time.Time `json:"at"`
}

// AchievementUnlocked implements achievement.Notifier.
func (w *Webhook) AchievementUnlocked(userID, achievementID string) {
	if w == nil {
		return
	}
	go func() {
		ev := unlockEvent{Event: "achievement_unlocked", UserID: userID, AchievementID: achievementID, At: time.Now().UTC()}
		if err := w.post(ev); err != nil {
			obslog.L().Warn("webhook_delivery_failed",
				zap.String("user_id", userID),
				zap.String("achievement_id", achievementID),
				zap.Error(err))
		}
	}()
}

func (w *Webhook) post(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(w.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := w.http.DoTimeout(req, resp, w.timeout); err != nil {
		return err
	}
	if code := resp.StatusCode(); code >= 300 {
		return fmt.Errorf("webhook returned status %d", code)
	}
	return nil
}
