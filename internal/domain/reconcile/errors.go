package reconcile

import "errors"

// Error taxonomy shared by the ingress, reconcilers and adapters.
var (
	// ErrVerification indicates a bad or missing webhook signature
	ErrVerification = errors.New("reconcile: signature verification failed")

	// ErrMalformedPayload indicates an envelope that could not be parsed
	ErrMalformedPayload = errors.New("reconcile: malformed payload")

	// ErrUnknownEventType indicates an event type with no mapping; callers treat it as a no-op
	ErrUnknownEventType = errors.New("reconcile: unknown event type")

	// ErrUpstream indicates a downstream system was unreachable or answered with an error status
	ErrUpstream = errors.New("reconcile: upstream request failed")

	// ErrInternal indicates an unexpected failure inside reconciliation; the event is not marked processed
	ErrInternal = errors.New("reconcile: internal error")

	// ErrNotFound indicates the addressed resource does not exist on the remote system
	ErrNotFound = errors.New("reconcile: resource not found")
)
