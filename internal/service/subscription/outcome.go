package subscription

import (
	"errors"
	"net/http"
)

// Stage is the last state an onboarding run reached.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StagePersisted Stage = "persisted"
	StageNotified  Stage = "notified"
	StageAccepted  Stage = "accepted"
)

// Outcome is the terminal result of a Subscribe or Confirm call.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	StorageFailed
	DispatchFailed
	Unauthorized
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case StorageFailed:
		return "failed_storage"
	case DispatchFailed:
		return "failed_dispatch"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the outcome onto the submission endpoint's status code.
func (o Outcome) HTTPStatus() int {
	switch o {
	case Accepted:
		return http.StatusOK
	case Rejected:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// OutcomeOf classifies an error returned by the service. Unclassified
// errors are treated as storage failures.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Accepted
	case errors.Is(err, ErrValidation):
		return Rejected
	case errors.Is(err, ErrUnknownToken):
		return Unauthorized
	case errors.Is(err, ErrDispatch):
		return DispatchFailed
	default:
		return StorageFailed
	}
}
