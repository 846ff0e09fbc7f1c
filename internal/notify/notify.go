// Package notify delivers one-time codes to users.
package notify

import (
	"context"
	"errors"
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

type Kind string

const (
	KindActivation    Kind = "activation"
	KindPasswordReset Kind = "password_reset"
)

// ErrNotImplemented is returned for channels that have no delivery backend.
var ErrNotImplemented = errors.New("notification channel not implemented")

type Message struct {
	Channel     Channel
	Destination string
	Code        string
	Kind        Kind
	ValidFor    time.Duration
}

type Notifier interface {
	SendCode(ctx context.Context, msg Message) error
}
