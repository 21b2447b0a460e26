package vcs

import "github.com/copybara/copybara/internal/change"

// EffectType classifies the outcome of a destination write
type EffectType int

const (
	// Created means a new destination change was created
	Created EffectType = iota
	// Updated means an existing destination change was updated
	Updated
	// Noop means nothing needed to be written
	Noop
	// Started means a long-running write began
	Started
	// Error means the write failed permanently
	Error
	// TemporaryError means the write failed but may be retried
	TemporaryError
)

func (t EffectType) String() string {
	switch t {
	case Created:
		return "CREATED"
	case Updated:
		return "UPDATED"
	case Noop:
		return "NOOP"
	case Started:
		return "STARTED"
	case Error:
		return "ERROR"
	case TemporaryError:
		return "TEMPORARY_ERROR"
	default:
		return "UNKNOWN"
	}
}

// DestinationRef points at the artifact a write produced
type DestinationRef struct {
	Type string
	ID   string
	URL  string
}

// DestinationEffect is one record in the append-only list a write returns
type DestinationEffect struct {
	Type          EffectType
	Summary       string
	OriginChanges []change.Change
	Destination   *DestinationRef
	Errors        []string
}

// NewCreatedEffect builds the common success effect
func NewCreatedEffect(summary string, origin []change.Change, ref *DestinationRef) DestinationEffect {
	return DestinationEffect{
		Type:          Created,
		Summary:       summary,
		OriginChanges: origin,
		Destination:   ref,
	}
}

// NewNoopEffect builds a no-op effect with a reason summary
func NewNoopEffect(summary string, origin []change.Change) DestinationEffect {
	return DestinationEffect{
		Type:          Noop,
		Summary:       summary,
		OriginChanges: origin,
	}
}
