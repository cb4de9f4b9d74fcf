package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// variantSeparator splits "Intro - B" into base name "Intro" and the variant suffix.
const variantSeparator = " - "

// Template is a message body with placeholders and A/B delivery counters.
type Template struct {
	ID       uuid.UUID
	Name     string
	Channel  Channel
	Subject  string
	Content  string
	Variant  string
	Category string
	Active   bool
	// IsDefault marks the fallback template of its channel.
	IsDefault bool

	Sent      int
	Opened    int
	Responded int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseName is the template name without its variant suffix.
func (t Template) BaseName() string {
	base, _, _ := strings.Cut(t.Name, variantSeparator)
	return strings.TrimSpace(base)
}

// ResponseRate is responded/sent, or zero before the first send.
func (t Template) ResponseRate() float64 {
	if t.Sent <= 0 {
		return 0
	}
	return float64(t.Responded) / float64(t.Sent)
}

// TemplateStats is an increment applied to template counters.
type TemplateStats struct {
	Sent      int
	Opened    int
	Responded int
}

// Message is a rendered message ready for a channel.
type Message struct {
	Subject    string
	Body       string
	TemplateID *uuid.UUID
	Variant    string
}
