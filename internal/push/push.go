// Package push delivers notifications to members' browsers over Web Push.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/dateplan/internal/model"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type Subscriptions interface {
	ListByMember(ctx context.Context, memberID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Service handles sending web push notifications.
type Service struct {
	cfg    Config
	subs   Subscriptions
	logger *slog.Logger
	send   func(ctx context.Context, sub *model.PushSubscription, data []byte) (int, error)
}

func NewService(cfg Config, subs Subscriptions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, subs: subs, logger: logger.With("component", "push")}
	s.send = s.sendWebPush
	return s
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Send sends a push notification to a subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	status, err := s.send(ctx, sub, data)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	if status == http.StatusGone || status == http.StatusNotFound {
		return ErrExpired
	}
	if status >= 400 {
		return fmt.Errorf("push service returned %d", status)
	}
	return nil
}

// Push sends payload to every subscription of the given members and returns
// how many deliveries succeeded. Expired subscriptions are removed; other
// delivery failures are logged and skipped.
func (s *Service) Push(ctx context.Context, memberIDs []int64, payload Payload) (int, error) {
	sent := 0
	for _, id := range memberIDs {
		subs, err := s.subs.ListByMember(ctx, id)
		if err != nil {
			return sent, err
		}
		for i := range subs {
			sub := &subs[i]
			err := s.Send(ctx, sub, payload)
			switch {
			case err == nil:
				sent++
			case errors.Is(err, ErrExpired):
				s.logger.Info("removing expired subscription", "member_id", id, "subscription_id", sub.ID)
				if err := s.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
					s.logger.Error("delete expired subscription", "error", err)
				}
			default:
				s.logger.Warn("push send failed", "member_id", id, "subscription_id", sub.ID, "error", err)
			}
		}
	}
	return sent, nil
}

func (s *Service) sendWebPush(ctx context.Context, sub *model.PushSubscription, data []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		Subscriber:      s.cfg.Subscriber,
		TTL:             86400,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// GenerateVAPIDKeys generates a new VAPID key pair, both URL-safe base64.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
