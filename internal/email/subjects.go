package email

import (
	"fmt"
	"strings"

	"lead_outreach_backend/internal/outreach/domain"
)

const (
	subjectDefaultFmt = "A quick idea for %s"
	subjectFallback   = "A quick idea for your business"
)

func subjectFor(lead domain.Lead, msg domain.Message) string {
	if s := strings.TrimSpace(msg.Subject); s != "" {
		return s
	}
	if name := strings.TrimSpace(lead.Name); name != "" {
		return fmt.Sprintf(subjectDefaultFmt, name)
	}
	return subjectFallback
}
