// Package domain holds the contractor pipeline stages and the pure
// transition table driven by engagement signals and sweeps.
package domain

import "govcon_outreach_backend/internal/scoring"

// Stage is a contractor's position in the sales funnel.
type Stage string

const (
	StageNew          Stage = "new"
	StageContacted    Stage = "contacted"
	StageEngaged      Stage = "engaged"
	StageHot          Stage = "hot"
	StageConverted    Stage = "converted"
	StageChurned      Stage = "churned"
	StageUnsubscribed Stage = "unsubscribed"
)

var stageRank = map[Stage]int{
	StageNew:       0,
	StageContacted: 1,
	StageEngaged:   2,
	StageHot:       3,
	StageConverted: 4,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := stageRank[s]
	return ok
}

// Terminal reports whether s is one of the absorbing exit stages.
func (s Stage) Terminal() bool {
	return s == StageChurned || s == StageUnsubscribed
}

// Before reports whether s precedes other in the funnel ordering.
// Terminal stages are not ordered.
func (s Stage) Before(other Stage) bool {
	a, okA := stageRank[s]
	b, okB := stageRank[other]
	return okA && okB && a < b
}

// Signal is an engagement event or sweep outcome that may move a contractor.
type Signal string

const (
	SignalOpen         Signal = "open"
	SignalClick        Signal = "click"
	SignalSignup       Signal = "signup"
	SignalUnsubscribe  Signal = "unsubscribe"
	SignalTrialExpired Signal = "trial_expired"
)

// Valid reports whether s is a known signal.
func (s Signal) Valid() bool {
	switch s {
	case SignalOpen, SignalClick, SignalSignup, SignalUnsubscribe, SignalTrialExpired:
		return true
	}
	return false
}

// EmailStatus returns the email log status a signal forwards to, if any.
func (s Signal) EmailStatus() (string, bool) {
	switch s {
	case SignalOpen:
		return "opened", true
	case SignalClick:
		return "clicked", true
	case SignalUnsubscribe:
		return "unsubscribed", true
	}
	return "", false
}

const (
	OpenScoreBonus  = 5
	ClickScoreBonus = 8
	ConversionScore = scoring.MaxScore
)

// State is the part of a contractor row the transition table reads.
type State struct {
	Stage Stage
	Score int
}

// Outcome is the result of applying a signal to a state.
type Outcome struct {
	Next     Stage
	Score    int
	Priority scoring.Priority
	Changed  bool
}

// StageChanged reports whether the stage itself moved.
func (o Outcome) StageChanged(from Stage) bool {
	return o.Next != from
}

// Transition applies signal to current. It never moves a contractor
// backward; only signup, unsubscribe and trial expiry override the ordering.
// Churned and unsubscribed absorb every signal.
func Transition(current State, signal Signal) Outcome {
	next := current.Stage
	score := current.Score
	delta := 0
	forced := false

	switch signal {
	case SignalOpen:
		if current.Stage.Terminal() {
			break
		}
		switch current.Stage {
		case StageNew:
			next = StageContacted
		case StageContacted:
			next = StageEngaged
		}
		delta = OpenScoreBonus
	case SignalClick:
		if current.Stage.Terminal() {
			break
		}
		if current.Stage.Before(StageHot) {
			next = StageHot
		}
		delta = ClickScoreBonus
	case SignalSignup:
		if current.Stage.Terminal() {
			break
		}
		next = StageConverted
		score = ConversionScore
		forced = true
	case SignalUnsubscribe:
		if current.Stage.Terminal() {
			break
		}
		next = StageUnsubscribed
	case SignalTrialExpired:
		if current.Stage == StageConverted {
			next = StageChurned
		}
	}

	if !forced {
		score = scoring.Clamp(score + delta)
	}

	return Outcome{
		Next:     next,
		Score:    score,
		Priority: scoring.PriorityFor(score),
		Changed:  next != current.Stage || score != current.Score,
	}
}
