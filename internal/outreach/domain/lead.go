// Package domain holds the outreach entities and the rules that keep them consistent:
// temperature derivation, sequence position and the campaign job state machine.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Temperature is the qualitative bucket derived from a lead's score.
type Temperature string

const (
	TemperatureHot  Temperature = "hot"
	TemperatureWarm Temperature = "warm"
	TemperatureCold Temperature = "cold"
)

const (
	// HotThreshold is the lowest score considered HOT.
	HotThreshold = 70
	// WarmThreshold is the lowest score considered WARM.
	WarmThreshold = 40

	MinScore = 0
	MaxScore = 100
)

// TemperatureFor derives the temperature of a score. It is the only source of temperature values.
func TemperatureFor(score int) Temperature {
	switch {
	case score >= HotThreshold:
		return TemperatureHot
	case score >= WarmThreshold:
		return TemperatureWarm
	default:
		return TemperatureCold
	}
}

// ParseTemperature accepts any casing of hot, warm or cold.
func ParseTemperature(raw string) (Temperature, error) {
	t := Temperature(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return t, nil
	}
	return "", fmt.Errorf("unknown temperature %q", raw)
}

// LeadStatus is the lifecycle position of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusReplied   LeadStatus = "replied"
	LeadStatusClosed    LeadStatus = "closed"
	LeadStatusLost      LeadStatus = "lost"
)

// ParseLeadStatus accepts any casing of the five lifecycle statuses.
func ParseLeadStatus(raw string) (LeadStatus, error) {
	s := LeadStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusReplied, LeadStatusClosed, LeadStatusLost:
		return s, nil
	}
	return "", fmt.Errorf("unknown lead status %q", raw)
}

// Lead is a prospective customer tracked through outreach.
type Lead struct {
	ID       uuid.UUID
	Name     string
	Phone    string
	Email    string
	City     string
	Country  string
	Category string
	Rating   float64
	// HasWebsite marks leads that already have a web presence.
	HasWebsite bool
	// FirstMessage is a pre-generated opener used when no template applies.
	FirstMessage string

	Score       int
	Temperature Temperature
	Status      LeadStatus

	EngagementCount   int
	ResponseTimeHours *float64
	LastResponse      string

	LastContactedAt *time.Time
	LastResponseAt  *time.Time
	LastDecayedAt   *time.Time

	SequenceID     *uuid.UUID
	SequenceStep   int
	NextFollowupAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	// Version guards optimistic updates.
	Version int
}

// SetScore clamps score into [0,100] and re-derives the temperature.
func (l *Lead) SetScore(score int) {
	l.Score = clamp(score, MinScore, MaxScore)
	l.Temperature = TemperatureFor(l.Score)
}

// ContactFor returns the address used to reach the lead on channel.
func (l Lead) ContactFor(channel Channel) string {
	switch channel {
	case ChannelWhatsApp, ChannelSMS:
		return strings.TrimSpace(l.Phone)
	case ChannelEmail:
		return strings.TrimSpace(l.Email)
	}
	return ""
}

// DaysSince returns the whole days elapsed between t and now.
func DaysSince(t, now time.Time) int {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
