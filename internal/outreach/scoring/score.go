// Package scoring computes lead scores and ages them over time.
package scoring

import (
	"time"

	"lead_outreach_backend/internal/outreach/domain"
)

const (
	baseScore = 50

	ratingMultiplier = 4
	maxRatingBonus   = 20

	websitePenalty   = 10
	noWebsiteBonus   = 15
	engagementPoints = 5
	maxEngagement    = 20

	fastResponseBonus   = 15 // under an hour
	sameDayBonus        = 10 // under a day
	withinThreeDayBonus = 5

	agePenaltyPerDay = 2
	maxAgePenalty    = 30
)

// ComputeScore derives a lead's score from its profile, engagement and age.
// Terms are summed unclamped and the total is clamped to [0,100] once.
func ComputeScore(lead domain.Lead, now time.Time) int {
	score := baseScore

	if lead.Rating > 0 {
		score += min(int(lead.Rating*ratingMultiplier), maxRatingBonus)
	}

	if lead.HasWebsite {
		score -= websitePenalty
	} else {
		score += noWebsiteBonus
	}

	if lead.EngagementCount > 0 {
		score += min(lead.EngagementCount*engagementPoints, maxEngagement)
	}

	if lead.ResponseTimeHours != nil {
		switch hours := *lead.ResponseTimeHours; {
		case hours < 1:
			score += fastResponseBonus
		case hours < 24:
			score += sameDayBonus
		case hours < 72:
			score += withinThreeDayBonus
		}
	}

	if lead.Status == domain.LeadStatusNew {
		days := domain.DaysSince(lead.CreatedAt, now)
		score -= min(days*agePenaltyPerDay, maxAgePenalty)
	}

	return max(domain.MinScore, min(score, domain.MaxScore))
}

// Decay returns the aged score for lead at now and whether it dropped.
// NEW leads age from creation; CONTACTED leads without a reply age from
// their last contact and are left alone when none is recorded. Decay never raises a score and every tier downgrade
// lands strictly below the tier threshold.
func Decay(lead domain.Lead, now time.Time) (int, bool) {
	if lead.Temperature == domain.TemperatureCold {
		return lead.Score, false
	}

	s := lead.Score
	next := s

	switch lead.Status {
	case domain.LeadStatusNew:
		days := domain.DaysSince(lead.CreatedAt, now)
		switch {
		case days > 21:
			next = min(max(s-30, 10), domain.WarmThreshold-1)
		case days > 14:
			if lead.Temperature == domain.TemperatureHot {
				next = min(max(s-20, 30), domain.HotThreshold-1)
			}
		case days > 7:
			next = max(s-10, 40)
		}

	case domain.LeadStatusContacted:
		if lead.LastResponseAt != nil || lead.LastContactedAt == nil {
			return s, false
		}
		days := domain.DaysSince(*lead.LastContactedAt, now)
		switch {
		case days > 30:
			next = min(max(s-25, 10), domain.WarmThreshold-1)
		case days > 21:
			next = max(s-15, 25)
			if lead.Temperature == domain.TemperatureHot {
				next = min(next, domain.HotThreshold-1)
			}
		case days > 14:
			next = max(s-10, 35)
		}

	case domain.LeadStatusReplied, domain.LeadStatusClosed, domain.LeadStatusLost:
	}

	if next >= s {
		return s, false
	}
	return next, true
}
