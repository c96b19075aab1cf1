package push

import (
	"context"
	"fmt"
	"strings"

	"github.com/sideshow/apns2"
	apnspayload "github.com/sideshow/apns2/payload"
	apnstoken "github.com/sideshow/apns2/token"

	"teamup/internal/domain"
)

// apnsProvider sends over APNs with token-based (.p8) authentication.
type apnsProvider struct {
	client *apns2.Client
	topic  string
}

func newAPNsProvider(cfg APNsConfig) (Provider, error) {
	authKey, err := apnstoken.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("apns auth key: %w", err)
	}
	tok := &apnstoken.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}
	client := apns2.NewTokenClient(tok)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &apnsProvider{client: client, topic: cfg.BundleID}, nil
}

func (a *apnsProvider) Send(ctx context.Context, deviceToken string, p domain.Payload) error {
	pl := apnspayload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body)
	if p.Sound != "" {
		pl = pl.Sound(p.Sound)
	}
	if p.Badge > 0 {
		pl = pl.Badge(p.Badge)
	}
	// Interactive buttons render through a platform category; the app
	// registers matching UNNotificationCategory identifiers.
	if len(p.Actions) > 0 {
		pl = pl.Category(categoryIdentifier(p.Type))
	}
	pl = pl.Custom("type", string(p.Type))
	for k, v := range p.Data {
		pl = pl.Custom(k, v)
	}

	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       a.topic,
		Payload:     pl,
	}

	res, err := a.client.PushWithContext(ctx, n)
	if err != nil {
		return err
	}
	if res.Sent() {
		return nil
	}
	if apnsTokenDead(res.Reason) {
		return fmt.Errorf("%w: apns %s", ErrTokenInvalid, res.Reason)
	}
	return fmt.Errorf("apns rejected: %s (status %d)", res.Reason, res.StatusCode)
}

func apnsTokenDead(reason string) bool {
	switch reason {
	case apns2.ReasonUnregistered,
		apns2.ReasonBadDeviceToken,
		apns2.ReasonDeviceTokenNotForTopic:
		return true
	default:
		return false
	}
}

func categoryIdentifier(t domain.NotificationType) string {
	return strings.ToUpper(string(t))
}
