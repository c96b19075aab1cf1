package botchan

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update is one inbound bot event, decoupled from the transport library.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Button is one inline keyboard button; Data is packed callback data.
type Button struct {
	Label string
	Data  string
}

// MessageRef locates a sent message for later edit/delete/pin.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Messenger is the outbound bot API consumed by the engine, the OTP flow,
// the alert reporter and the pinned summary refresher.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, buttons [][]Button) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string, buttons [][]Button) error
	Delete(ctx context.Context, ref MessageRef) error
	Pin(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Config configures the telegram adapter.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outbound sends across all chats.
	RatePerSec int
}
