package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/subscription"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// SubscriptionRepo implements subscription.Repository against PostgreSQL.
type SubscriptionRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSubscriptionRepo creates a Postgres-backed subscription repository.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db, now: time.Now}
}

// Save inserts the subscriber and its token in one transaction. Any exit
// that does not reach Commit rolls back, so a subscriber row is never
// visible without its token.
func (r *SubscriptionRepo) Save(ctx context.Context, s domain.NewSubscriber, token string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin subscription tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, email, name, subscribed_at, status)
		VALUES ($1, $2, $3, $4, $5)
	`, id, s.Email.String(), s.Name.String(), r.now().UTC(), string(domain.SubscriberPendingConfirmation)); err != nil {
		return "", fmt.Errorf("insert subscriber: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subscription_tokens (subscription_token, subscriber_id)
		VALUES ($1, $2)
	`, token, id); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("insert subscription token: %w", subscription.ErrTokenConflict)
		}
		return "", fmt.Errorf("insert subscription token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit subscription tx: %w", err)
	}
	return id, nil
}

func (r *SubscriptionRepo) SubscriberIDByToken(ctx context.Context, token string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1`,
		token,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", subscription.ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("lookup subscription token: %w", err)
	}
	return id, nil
}

func (r *SubscriptionRepo) ConfirmSubscriber(ctx context.Context, subscriberID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1 WHERE id = $2`,
		string(domain.SubscriberConfirmed), subscriberID,
	)
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("confirm subscriber %s: no such row", subscriberID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
