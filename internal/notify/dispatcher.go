package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/clock"
)

// DeliveryState tracks one notification through the send loop.
type DeliveryState int

// Delivery states. A notification cycles Sending -> Waiting -> Sending while
// rate limited and terminates in Delivered or Abandoned.
const (
	StateSending DeliveryState = iota
	StateWaiting
	StateDelivered
	StateAbandoned
)

// String implements fmt.Stringer for log fields.
func (s DeliveryState) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateWaiting:
		return "waiting"
	case StateDelivered:
		return "delivered"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Stats summarizes one dispatch batch.
type Stats struct {
	Delivered int
	Abandoned int
}

// Dispatcher serializes notification delivery to a single webhook. Sends are
// strictly ordered: a rate-limited notification is retried in place and
// nothing after it is sent until it is delivered or abandoned.
type Dispatcher struct {
	client     *resty.Client
	webhookURL string
	sleeper    clock.Sleeper
	logger     *zap.Logger
}

// NewDispatcher builds a Dispatcher for one webhook URL.
func NewDispatcher(webhookURL string, timeout time.Duration, sleeper clock.Sleeper, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:     resty.New().SetTimeout(timeout),
		webhookURL: webhookURL,
		sleeper:    sleeper,
		logger:     logger,
	}
}

// Dispatch sends every queued notification in ascending timestamp order
// across all tracked items, so the channel shows one chronological feed no
// matter what order the items were scraped in. Rate limiting is never an
// error; a hard transport error abandons only the affected notification.
func (d *Dispatcher) Dispatch(ctx context.Context, queue []Notification) Stats {
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Comment.Timestamp < queue[j].Comment.Timestamp
	})

	var stats Stats
	for _, n := range queue {
		switch d.send(ctx, n) {
		case StateDelivered:
			stats.Delivered++
		default:
			stats.Abandoned++
		}
	}
	return stats
}

// send drives one notification through the delivery state machine. The same
// payload is resent verbatim after every rate-limit wait.
func (d *Dispatcher) send(ctx context.Context, n Notification) DeliveryState {
	payload := n.message()
	state := StateSending
	for {
		if ctx.Err() != nil {
			d.logger.Warn("Dispatch canceled",
				zap.String("item_id", n.ItemID), zap.Stringer("state", state))
			return StateAbandoned
		}

		res, err := d.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(d.webhookURL)
		if err != nil {
			d.logger.Error("Webhook send failed",
				zap.String("item_id", n.ItemID), zap.Error(err))
			return StateAbandoned
		}

		if res.StatusCode() == http.StatusTooManyRequests {
			wait := retryAfter(res)
			state = StateWaiting
			d.logger.Info("Rate limited by channel, waiting",
				zap.String("item_id", n.ItemID),
				zap.Duration("retry_after", wait),
				zap.Stringer("state", state))
			d.sleeper.Sleep(ctx, wait)
			state = StateSending
			continue
		}
		if !res.IsSuccess() {
			d.logger.Error("Webhook rejected notification",
				zap.String("item_id", n.ItemID),
				zap.Int("status", res.StatusCode()),
				zap.String("body", res.String()))
			return StateAbandoned
		}

		// The send succeeded, but a depleted quota window means the next
		// send would immediately 429. Wait out the reported reset now.
		if remaining, reset, ok := quotaSignal(res); ok && remaining == 0 {
			d.logger.Info("Rate limit bucket depleted, waiting for reset",
				zap.Duration("reset_after", reset))
			d.sleeper.Sleep(ctx, reset)
		}
		return StateDelivered
	}
}

// retryAfter extracts the server-given delay from a 429 response body,
// defaulting to one second.
func retryAfter(res *resty.Response) time.Duration {
	var body struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil || body.RetryAfter <= 0 {
		return time.Second
	}
	return time.Duration(body.RetryAfter * float64(time.Second))
}

// quotaSignal reads the remaining-quota header pair from a successful
// response.
func quotaSignal(res *resty.Response) (remaining int, reset time.Duration, ok bool) {
	rem := res.Header().Get("X-RateLimit-Remaining")
	if rem == "" {
		return 0, 0, false
	}
	remaining, err := strconv.Atoi(rem)
	if err != nil {
		return 0, 0, false
	}
	seconds, err := strconv.ParseFloat(res.Header().Get("X-RateLimit-Reset-After"), 64)
	if err != nil || seconds <= 0 {
		seconds = 1
	}
	return remaining, time.Duration(seconds * float64(time.Second)), true
}
