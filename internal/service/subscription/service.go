package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/pkg/token"
)

// DefaultTokenAttempts bounds how many tokens Subscribe tries when the
// repository reports a collision.
const DefaultTokenAttempts = 3

// ConfirmationSubject is the subject line of the double-opt-in email.
const ConfirmationSubject = "Welcome!"

// Service runs the onboarding workflow. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	repo          Repository
	emails        EmailDispatcher
	baseURL       string
	tokenAttempts int
	newToken      func() (string, error)
}

// Option customises a Service.
type Option func(*Service)

// WithTokenAttempts sets the collision retry bound. Values below 1 are ignored.
func WithTokenAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.tokenAttempts = n
		}
	}
}

// WithTokenGenerator replaces the token source.
func WithTokenGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.newToken = fn
		}
	}
}

// NewService creates an onboarding service. baseURL is the public address
// the confirmation link points at.
func NewService(repo Repository, emails EmailDispatcher, baseURL string, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		emails:        emails,
		baseURL:       strings.TrimRight(baseURL, "/"),
		tokenAttempts: DefaultTokenAttempts,
		newToken:      token.Generate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubscribeRequest carries the raw form values.
type SubscribeRequest struct {
	Name  string
	Email string
}

// Result describes how far a Subscribe call got. SubscriberID is set once
// the subscriber has been committed, including when dispatch then fails.
type Result struct {
	SubscriberID string
	Stage        Stage
}

// Subscribe validates the request, stores a pending subscriber with a fresh
// token, and sends the confirmation email. The email is only sent after the
// transaction commits, and a failed send does not undo the stored rows.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (Result, error) {
	log := logger.FromContext(ctx).With("subscriber_email", req.Email, "subscriber_name", req.Name)
	res := Result{Stage: StageReceived}

	sub, err := domain.ParseNewSubscriber(req.Name, req.Email)
	if err != nil {
		log.Info("rejected subscription", "error", err)
		return res, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	res.Stage = StageValidated

	id, tok, err := s.persist(ctx, log, sub)
	if err != nil {
		log.Error("failed to store new subscriber", "error", err)
		return res, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	res.SubscriberID = id
	res.Stage = StagePersisted
	log = log.With("subscriber_id", id)

	if err := s.sendConfirmationEmail(ctx, sub, tok); err != nil {
		log.Error("failed to send confirmation email", "error", err)
		return res, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	res.Stage = StageNotified

	log.Info("subscriber pending confirmation")
	res.Stage = StageAccepted
	return res, nil
}

// persist saves the subscriber, regenerating the token on collisions up to
// tokenAttempts times. Each attempt is its own transaction.
func (s *Service) persist(ctx context.Context, log *logger.Logger, sub domain.NewSubscriber) (string, string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.tokenAttempts; attempt++ {
		tok, err := s.newToken()
		if err != nil {
			return "", "", err
		}
		id, err := s.repo.Save(ctx, sub, tok)
		if err == nil {
			return id, tok, nil
		}
		if !errors.Is(err, ErrTokenConflict) {
			return "", "", err
		}
		lastErr = err
		log.Warn("subscription token collision, retrying", "attempt", attempt)
	}
	return "", "", fmt.Errorf("gave up after %d attempts: %w", s.tokenAttempts, lastErr)
}

func (s *Service) sendConfirmationEmail(ctx context.Context, sub domain.NewSubscriber, tok string) error {
	link := ConfirmationLink(s.baseURL, tok)
	plainBody := fmt.Sprintf(
		"Welcome to our newsletter!\nVisit %s to confirm your subscription.",
		link,
	)
	htmlBody := fmt.Sprintf(
		"Welcome to our newsletter!<br />Click <a href=\"%s\">here</a> to confirm your subscription.",
		link,
	)
	return s.emails.SendEmail(ctx, sub.Email, ConfirmationSubject, plainBody, htmlBody)
}

// ConfirmationLink builds {baseURL}/subscriptions/confirm?subscription_token={tok}.
func ConfirmationLink(baseURL, tok string) string {
	return strings.TrimRight(baseURL, "/") + "/subscriptions/confirm?subscription_token=" + url.QueryEscape(tok)
}

// Confirm marks the subscriber owning tok as confirmed. Confirming twice
// succeeds both times.
func (s *Service) Confirm(ctx context.Context, tok string) error {
	log := logger.FromContext(ctx)
	if !token.Valid(tok) {
		return fmt.Errorf("%w: malformed subscription token", ErrValidation)
	}

	id, err := s.repo.SubscriberIDByToken(ctx, tok)
	if errors.Is(err, ErrUnknownToken) {
		log.Info("confirmation with unknown token")
		return err
	}
	if err != nil {
		log.Error("failed to look up subscription token", "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.repo.ConfirmSubscriber(ctx, id); err != nil {
		log.Error("failed to confirm subscriber", "subscriber_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	log.Info("subscriber confirmed", "subscriber_id", id)
	return nil
}
