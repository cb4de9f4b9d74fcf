package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Sequence is an ordered list of timed outreach steps.
type Sequence struct {
	ID          uuid.UUID
	Name        string
	Description string
	Active      bool
	Steps       []SequenceStep
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SequenceStep is one timed message of a sequence.
type SequenceStep struct {
	// StepNumber is 1-based and unique within the sequence.
	StepNumber      int
	Channel         Channel
	TemplateID      uuid.UUID
	DelayDays       int
	DelayHours      int
	StopIfResponded bool
}

// Delay is the wait after the previous step, or after enrollment for step 1.
func (s SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// Step returns the step with the given number, or false when the sequence has no such step.
func (s Sequence) Step(number int) (SequenceStep, bool) {
	for _, step := range s.Steps {
		if step.StepNumber == number {
			return step, true
		}
	}
	return SequenceStep{}, false
}

// Normalize sorts steps by number and rejects duplicates, gaps and bad delays.
func (s *Sequence) Normalize() error {
	sort.SliceStable(s.Steps, func(i, j int) bool {
		return s.Steps[i].StepNumber < s.Steps[j].StepNumber
	})
	for i, step := range s.Steps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("sequence %q: step numbers must run 1..n without gaps, found %d at position %d", s.Name, step.StepNumber, i+1)
		}
		if step.DelayDays < 0 || step.DelayHours < 0 {
			return fmt.Errorf("sequence %q: step %d has a negative delay", s.Name, step.StepNumber)
		}
		if _, err := ParseChannel(string(step.Channel)); err != nil {
			return fmt.Errorf("sequence %q: step %d: %w", s.Name, step.StepNumber, err)
		}
	}
	return nil
}

// SequenceState is a lead's position in its sequence.
type SequenceState string

const (
	SequenceUnenrolled   SequenceState = "unenrolled"
	SequenceAwaitingStep SequenceState = "awaiting_step"
	SequenceCompleted    SequenceState = "completed"
)

// SequenceState reports whether the lead is unenrolled, awaiting step
// SequenceStep+1, or enrolled with every step sent.
func (l Lead) SequenceState() SequenceState {
	switch {
	case l.SequenceID == nil:
		return SequenceUnenrolled
	case l.NextFollowupAt == nil:
		return SequenceCompleted
	default:
		return SequenceAwaitingStep
	}
}

// ClearSequence removes the lead from any sequence.
func (l *Lead) ClearSequence() {
	l.SequenceID = nil
	l.SequenceStep = 0
	l.NextFollowupAt = nil
}
