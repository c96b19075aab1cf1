package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"teamup/internal/domain"
)

// fcmProvider sends over FCM v1 with service-account authentication.
type fcmProvider struct {
	client *messaging.Client
}

func newFCMProvider(cfg FCMConfig) (Provider, error) {
	ctx := context.Background()
	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: cfg.ProjectID},
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm client: %w", err)
	}
	return &fcmProvider{client: client}, nil
}

func (f *fcmProvider) Send(ctx context.Context, deviceToken string, p domain.Payload) error {
	data := map[string]string{"type": string(p.Type)}
	for k, v := range p.Data {
		data[k] = v
	}
	if p.Badge > 0 {
		data["badge"] = strconv.Itoa(p.Badge)
	}
	// Android renders action buttons client-side; the button set travels
	// in the data payload.
	if len(p.Actions) > 0 {
		if b, err := json.Marshal(p.Actions); err == nil {
			data["actions"] = string(b)
		}
	}

	msg := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: data,
	}
	if p.Sound != "" {
		msg.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: p.Sound},
		}
	}

	_, err := f.client.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if messaging.IsRegistrationTokenNotRegistered(err) {
		return fmt.Errorf("%w: fcm unregistered", ErrTokenInvalid)
	}
	return err
}
