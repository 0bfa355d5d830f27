// Package subscription implements subscriber onboarding: validate the
// submitted name and email, store a pending subscriber together with its
// confirmation token in one transaction, then send the double-opt-in email.
//
// A run moves through Received → Validated → Persisted → Notified →
// Accepted. Each failure exit is reported as an error wrapping exactly one
// of ErrValidation, ErrStorage or ErrDispatch; OutcomeOf turns that into the
// HTTP status the submission endpoint returns.
//
// The service depends on the Repository and EmailDispatcher interfaces. It
// never imports database/sql or handles HTTP requests directly.
package subscription
