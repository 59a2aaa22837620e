package model

import "errors"

var (
	ErrFractionRange      = errors.New("fraction must lie in [0, 1]")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrUnknownID          = errors.New("unknown id")
	ErrNoLocation         = errors.New("no matching location")
	ErrNoAlternative      = errors.New("constrained location type has no alternative")
	ErrAlternativeLoop    = errors.New("alternative location types form a loop")
	ErrDuplicateOccupant  = errors.New("person already present at location")
	ErrNotOccupant        = errors.New("person not present at location")
	ErrEmptyPatternDay    = errors.New("week pattern has an empty day")
	ErrSkipLoop           = errors.New("activity pattern skipped too many activities in one tick")
	ErrInvalidDuration    = errors.New("activity duration must be finite and non-negative, or skip")
	ErrNotConfigured      = errors.New("model is not fully configured")
	ErrAlreadyStarted     = errors.New("model already started")
	ErrDeadPerson         = errors.New("person is deceased")
	ErrUnknownPolicy      = errors.New("unknown policy")
	ErrInvalidPolicyTimes = errors.New("policy window must be finite and ordered")
)
