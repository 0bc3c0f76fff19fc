package out

import (
	"context"
)

// FetchedMail is a raw RFC 822 message pulled from a mailbox.
type FetchedMail struct {
	ID  string
	Raw []byte
}

// MailSource polls a mailbox for unread mail.
type MailSource interface {
	Name() string
	FetchUnseen(ctx context.Context) ([]FetchedMail, error)
	MarkSeen(ctx context.Context, id string) error
	Close() error
}
