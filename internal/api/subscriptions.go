package api

import (
	"context"
	"net/http"

	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/service/subscription"
)

// Onboarder is the part of subscription.Service the handlers need.
type Onboarder interface {
	Subscribe(ctx context.Context, req subscription.SubscribeRequest) (subscription.Result, error)
	Confirm(ctx context.Context, token string) error
}

// SubscriptionHandler serves the submission and confirmation endpoints.
// Responses carry only a status code; failure detail goes to the log.
type SubscriptionHandler struct {
	svc Onboarder
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc Onboarder) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Subscribe handles a url-encoded name/email form submission.
//
//	POST /subscriptions
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		log.Info("unreadable subscription form", "error", err)
		httputil.Status(w, http.StatusBadRequest)
		return
	}

	result, err := h.svc.Subscribe(r.Context(), subscription.SubscribeRequest{
		Name:  r.PostForm.Get("name"),
		Email: r.PostForm.Get("email"),
	})
	outcome := subscription.OutcomeOf(err)
	log.Info("subscription request finished",
		"outcome", outcome.String(),
		"stage", string(result.Stage),
		"subscriber_id", result.SubscriberID,
	)
	httputil.Status(w, outcome.HTTPStatus())
}

// Confirm consumes the token from a confirmation link.
//
//	GET /subscriptions/confirm?subscription_token=...
func (h *SubscriptionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Confirm(r.Context(), r.URL.Query().Get("subscription_token"))
	outcome := subscription.OutcomeOf(err)
	logger.FromContext(r.Context()).Info("confirmation request finished", "outcome", outcome.String())
	httputil.Status(w, outcome.HTTPStatus())
}
