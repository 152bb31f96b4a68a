package scheduler

import (
	"fmt"

	"github.com/google/uuid"
)

// EntrypointNotFoundError is returned when the requested entrypoint is not
// advertised on the agent's capability card.
type EntrypointNotFoundError struct {
	EntrypointKey string
	CardURL       string
}

func (e *EntrypointNotFoundError) Error() string {
	return fmt.Sprintf("entrypoint %q not found on agent card %s", e.EntrypointKey, e.CardURL)
}

// CardFetchError is returned when the agent's capability card cannot be
// fetched or refreshed.
type CardFetchError struct {
	CardURL string
	Err     error
}

func (e *CardFetchError) Error() string {
	return fmt.Sprintf("failed to fetch agent card %s: %v", e.CardURL, e.Err)
}

func (e *CardFetchError) Unwrap() error { return e.Err }

// HireNotFoundError is returned when an operation references an absent hire.
type HireNotFoundError struct {
	HireID uuid.UUID
}

func (e *HireNotFoundError) Error() string {
	return fmt.Sprintf("hire %s not found", e.HireID)
}

// HireCanceledError is returned when an operation targets a canceled hire.
// Cancellation is terminal; the hire accepts no further jobs.
type HireCanceledError struct {
	HireID uuid.UUID
}

func (e *HireCanceledError) Error() string {
	return fmt.Sprintf("hire %s is canceled", e.HireID)
}
