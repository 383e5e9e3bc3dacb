package model

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrAlreadyProcessing is returned when a session already has an active job.
	ErrAlreadyProcessing = errors.New("session is already processing a job")
	// ErrPipelineFailure is returned when the video pipeline fails.
	ErrPipelineFailure = errors.New("pipeline failure")
	// ErrAgentFailure is returned when the LLM agent query fails.
	ErrAgentFailure = errors.New("agent failure")
	// ErrRelayProtocol is returned when the progress relay observes an invalid queue item.
	ErrRelayProtocol = errors.New("relay protocol error")
	// ErrUpstreamUnavailable is returned when a collaborator (status store, object store...) fails.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Error kinds used on structured error events.
const (
	ErrorKindAlreadyProcessing   = "already_processing"
	ErrorKindPipelineFailure     = "pipeline_failure"
	ErrorKindAgentFailure        = "agent_failure"
	ErrorKindRelayProtocol       = "relay_protocol_error"
	ErrorKindUpstreamUnavailable = "upstream_unavailable"
	ErrorKindNotValid            = "not_valid"
	ErrorKindCancelled           = "cancelled"
	ErrorKindInternal            = "internal"
)

// ErrorKind returns the structured kind of an error chain.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyProcessing):
		return ErrorKindAlreadyProcessing
	case errors.Is(err, ErrRelayProtocol):
		return ErrorKindRelayProtocol
	case errors.Is(err, ErrPipelineFailure):
		return ErrorKindPipelineFailure
	case errors.Is(err, ErrAgentFailure):
		return ErrorKindAgentFailure
	case errors.Is(err, ErrUpstreamUnavailable):
		return ErrorKindUpstreamUnavailable
	case errors.Is(err, ErrNotValid):
		return ErrorKindNotValid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	default:
		return ErrorKindInternal
	}
}
