package recovery

import (
	"context"
	"errors"
	"strings"
)

// ErrorClass partitions failures for retry decisions.
type ErrorClass int

const (
	// ClassUnknown covers errors the heuristics cannot place; treated as
	// non-retryable to avoid hammering a failing dependency.
	ClassUnknown ErrorClass = iota
	// ClassTransient errors may succeed on retry.
	ClassTransient
	// ClassPermanent errors will not succeed on retry.
	ClassPermanent
)

// genericTransientPhrases is the keyword table shared by all services. The
// lowercase substring match is a known-fragile heuristic kept for parity with
// the behaviour downstream teams already depend on; callers that can do better
// should implement TransientError instead.
var genericTransientPhrases = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"service unavailable",
	"unavailable",
	"try again",
	"503",
	"502",
}

// serviceTransientPhrases adds per-service transient signatures on top of the
// generic table.
var serviceTransientPhrases = map[string][]string{
	"vision_analysis":    {"model loading", "model warming", "gpu busy"},
	"vector_search":      {"index rebuilding", "shard unavailable", "replica lag"},
	"classifier":         {"warmup", "batch queue full"},
	"demographic_search": {"partition migrating", "lookup backlog"},
}

// Classify places an error into a retry class for the given service. It is a
// pure function: explicit markers first, then typed errors, then the keyword
// tables.
func Classify(service string, err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	// A cancelled caller must never be retried against.
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var transient TransientError
	if errors.As(err, &transient) {
		if transient.Transient() {
			return ClassTransient
		}
		return ClassPermanent
	}

	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		return ClassPermanent
	}
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return ClassPermanent
	}

	message := strings.ToLower(err.Error())
	for _, phrase := range serviceTransientPhrases[service] {
		if strings.Contains(message, phrase) {
			return ClassTransient
		}
	}
	for _, phrase := range genericTransientPhrases {
		if strings.Contains(message, phrase) {
			return ClassTransient
		}
	}
	return ClassUnknown
}
