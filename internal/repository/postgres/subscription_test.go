package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/subscription"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "abcdefghijklmnopqrstuvwxy"

var (
	insertSubscriberSQL = regexp.QuoteMeta("INSERT INTO subscriptions (id, email, name, subscribed_at, status)")
	insertTokenSQL      = regexp.QuoteMeta("INSERT INTO subscription_tokens (subscription_token, subscriber_id)")
)

// captureArg matches any value and remembers it, so later expectations can
// assert the same id was used.
type captureArg struct{ value *string }

func (c captureArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*c.value = s
	}
	return ok
}

// sameArg matches only the value previously captured.
type sameArg struct{ value *string }

func (s sameArg) Match(v driver.Value) bool {
	got, ok := v.(string)
	return ok && got == *s.value
}

func setupRepo(t *testing.T) (*SubscriptionRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewSubscriptionRepo(db)
	repo.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return repo, mock
}

func newSubscriber(t *testing.T) domain.NewSubscriber {
	t.Helper()
	s, err := domain.ParseNewSubscriber("le guin", "ursula_le_guin@gmail.com")
	require.NoError(t, err)
	return s
}

func TestSave_CommitsBothRows(t *testing.T) {
	repo, mock := setupRepo(t)
	var id string

	mock.ExpectBegin()
	mock.ExpectExec(insertSubscriberSQL).
		WithArgs(captureArg{&id}, "ursula_le_guin@gmail.com", "le guin",
			time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "pending_confirmation").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenSQL).
		WithArgs(testToken, sameArg{&id}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Save(context.Background(), newSubscriber(t), testToken)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	_, err = uuid.Parse(got)
	assert.NoError(t, err, "subscriber id should be a UUID")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_TokenInsertFailureRollsBack(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertSubscriberSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenSQL).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), newSubscriber(t), testToken)
	require.Error(t, err)
	assert.False(t, errors.Is(err, subscription.ErrTokenConflict))
	assert.NoError(t, mock.ExpectationsWereMet(), "subscriber insert must be rolled back")
}

func TestSave_TokenCollisionIsRetryable(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertSubscriberSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenSQL).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "subscription_tokens_pkey"})
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), newSubscriber(t), testToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, subscription.ErrTokenConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_SubscriberInsertFailureSkipsToken(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertSubscriberSQL).WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), newSubscriber(t), testToken)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_CommitFailure(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertSubscriberSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	_, err := repo.Save(context.Background(), newSubscriber(t), testToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_BeginFailure(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := repo.Save(context.Background(), newSubscriber(t), testToken)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberIDByToken(t *testing.T) {
	repo, mock := setupRepo(t)
	lookup := regexp.QuoteMeta("SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1")

	mock.ExpectQuery(lookup).WithArgs(testToken).
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow("sub-1"))
	id, err := repo.SubscriberIDByToken(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)

	mock.ExpectQuery(lookup).WithArgs(testToken).WillReturnError(sql.ErrNoRows)
	_, err = repo.SubscriberIDByToken(context.Background(), testToken)
	assert.ErrorIs(t, err, subscription.ErrUnknownToken)

	mock.ExpectQuery(lookup).WithArgs(testToken).WillReturnError(errors.New("timeout"))
	_, err = repo.SubscriberIDByToken(context.Background(), testToken)
	require.Error(t, err)
	assert.False(t, errors.Is(err, subscription.ErrUnknownToken))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmSubscriber(t *testing.T) {
	repo, mock := setupRepo(t)
	update := regexp.QuoteMeta("UPDATE subscriptions SET status = $1 WHERE id = $2")

	mock.ExpectExec(update).WithArgs("confirmed", "sub-1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ConfirmSubscriber(context.Background(), "sub-1"))

	mock.ExpectExec(update).WithArgs("confirmed", "ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Error(t, repo.ConfirmSubscriber(context.Background(), "ghost"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
