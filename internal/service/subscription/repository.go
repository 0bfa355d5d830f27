package subscription

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
)

// Repository defines the data access contract for subscriptions.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Save inserts the subscriber with status pending_confirmation and a
	// token row referencing it, in one transaction. Either both rows become
	// visible or neither does. Returns the generated subscriber id, or
	// ErrTokenConflict if the token collided with an existing one.
	Save(ctx context.Context, s domain.NewSubscriber, token string) (string, error)

	// SubscriberIDByToken resolves a confirmation token. Returns
	// ErrUnknownToken if no row matches.
	SubscriberIDByToken(ctx context.Context, token string) (string, error)

	// ConfirmSubscriber sets the subscriber's status to confirmed.
	ConfirmSubscriber(ctx context.Context, subscriberID string) error
}

// EmailDispatcher sends a single email. Implementations live outside this
// package (HTTP email API, SES).
type EmailDispatcher interface {
	SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, textBody, htmlBody string) error
}
