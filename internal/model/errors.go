package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDataAvailable means every provider failed for a query.
	ErrNoDataAvailable = errors.New("no data available")
	// ErrInsufficientHistory means a series is shorter than an indicator window.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrClassificationSkipped means a news item could not be scored.
	ErrClassificationSkipped = errors.New("classification skipped")
)

// FetchErrorKind classifies provider failures.
type FetchErrorKind string

const (
	KindNetwork     FetchErrorKind = "network"
	KindTimeout     FetchErrorKind = "timeout"
	KindStatus      FetchErrorKind = "status"
	KindMalformed   FetchErrorKind = "malformed"
	KindNotFound    FetchErrorKind = "not_found"
	KindUnsupported FetchErrorKind = "unsupported"
)

// FetchError is a failure scoped to one provider call.
type FetchError struct {
	Provider string
	Op       string
	Kind     FetchErrorKind
	Status   int // HTTP status for KindStatus
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindStatus:
		return e.Status == 0 || e.Status >= 500 || e.Status == 429
	default:
		return false
	}
}

// NewFetchError builds a FetchError, reclassifying context deadlines as timeouts.
func NewFetchError(provider, op string, kind FetchErrorKind, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &FetchError{Provider: provider, Op: op, Kind: kind, Err: err}
}

// Malformed builds a KindMalformed FetchError from a format string.
func Malformed(provider, op, format string, args ...any) *FetchError {
	return &FetchError{Provider: provider, Op: op, Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// InsufficientHistoryError describes an indicator that needs more bars.
type InsufficientHistoryError struct {
	Indicator string
	Need      int
	Have      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: need %d bars, have %d", e.Indicator, e.Need, e.Have)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

// ClassificationSkippedError describes a news item that degraded to neutral.
type ClassificationSkippedError struct {
	Index  int
	Reason string
}

func (e *ClassificationSkippedError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
}

func (e *ClassificationSkippedError) Unwrap() error { return ErrClassificationSkipped }

// QueryError is the single top-level failure of a query operation.
type QueryError struct {
	Op        string
	Symbol    string
	Attempted []string
	Err       error
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Symbol != "" {
		b.WriteString(" ")
		b.WriteString(e.Symbol)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if len(e.Attempted) > 0 {
		b.WriteString(" (attempted: ")
		b.WriteString(strings.Join(e.Attempted, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *QueryError) Unwrap() error { return e.Err }

// ProviderFailure is a provenance entry for a provider that did not contribute.
type ProviderFailure struct {
	Provider string         `json:"provider"`
	Op       string         `json:"op"`
	Kind     FetchErrorKind `json:"kind"`
	Reason   string         `json:"reason"`
}

// Provenance records which providers were asked and which contributed.
type Provenance struct {
	Sources   []string          `json:"sources"`
	Attempted []string          `json:"attempted"`
	Failures  []ProviderFailure `json:"failures,omitempty"`
}

// FailureFrom converts an adapter error into a provenance entry.
func FailureFrom(provider, op string, err error) ProviderFailure {
	f := ProviderFailure{Provider: provider, Op: op, Kind: KindNetwork, Reason: err.Error()}
	var fe *FetchError
	if errors.As(err, &fe) {
		f.Kind = fe.Kind
		f.Reason = fe.Err.Error()
	} else if errors.Is(err, context.DeadlineExceeded) {
		f.Kind = KindTimeout
	}
	return f
}

// Merge appends another provenance, keeping order and dropping duplicate names.
func (p Provenance) Merge(other Provenance) Provenance {
	out := Provenance{
		Sources:   appendUnique(append([]string(nil), p.Sources...), other.Sources...),
		Attempted: appendUnique(append([]string(nil), p.Attempted...), other.Attempted...),
		Failures:  append(append([]ProviderFailure(nil), p.Failures...), other.Failures...),
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, d := range dst {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, it)
		}
	}
	return dst
}
