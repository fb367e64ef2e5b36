package model

import "time"

// AnalysisResult is the remote service's answer for one file. The pipeline only checks
// presence of the required fields and never rescales the score.
type AnalysisResult struct {
	CandidateName   *string
	CandidateEmail  *string
	SkillsExtracted []string
	SkillsMatched   []string
	SkillsMissing   []string
	MatchScore      float64
	ExperienceYears float64
	EducationLevel  *string
	Summary         *string
	RawText         *string
}

// Liveness is the outcome of a single probe.
type Liveness int

// Probe outcomes.
const (
	Unreachable Liveness = iota
	Alive
)

// AvailabilityState is the tri-state signal exposed by the availability monitor.
type AvailabilityState int

// Availability states.
const (
	AvailabilityUnknown AvailabilityState = iota
	AvailabilityOnline
	AvailabilityOffline
)

func (s AvailabilityState) String() string {
	switch s {
	case AvailabilityOnline:
		return "online"
	case AvailabilityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Availability is the latest probe snapshot. CheckedAt is zero until the first probe lands.
type Availability struct {
	State     AvailabilityState `json:"-"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Online reports whether the analysis service was last observed reachable.
func (a Availability) Online() bool { return a.State == AvailabilityOnline }
