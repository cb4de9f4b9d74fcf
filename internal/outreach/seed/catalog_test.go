package seed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/platform/logger"
)

const catalogYAML = `
templates:
  - name: Intro - A
    channel: whatsapp
    content: "Hi {name}, we build websites in {city}."
    default: true
  - name: Intro - B
    channel: WhatsApp
    content: "Hello {name}!"
    category: restaurant
  - name: Welcome mail
    channel: email
    subject: "A website for {name}"
    content: "Dear {name}"
    active: false
sequences:
  - name: Three touch
    description: intro then two reminders
    steps:
      - template: Intro - A
      - template: intro - b
        delay_days: 2
        stop_if_responded: true
      - template: Welcome mail
        delay_days: 3
        delay_hours: 6
`

func TestApplyUpsertsTemplatesAndSequences(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()

	c, err := Parse(strings.NewReader(catalogYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := Apply(ctx, store, c)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Templates != 3 || res.Sequences != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	def, err := store.GetDefaultTemplate(ctx, domain.ChannelWhatsApp)
	if err != nil || def.Name != "Intro - A" || def.Variant != "A" {
		t.Fatalf("expected Intro - A as default, got %+v err=%v", def, err)
	}
	variants, _ := store.ListTemplateVariants(ctx, "Intro", domain.ChannelWhatsApp)
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
	if _, err := store.GetDefaultTemplate(ctx, domain.ChannelEmail); err == nil {
		t.Fatal("inactive email template must not be a default")
	}

	// Re-applying keeps ids and counters.
	if err := store.IncrementTemplateStats(ctx, def.ID, domain.TemplateStats{Sent: 4}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if _, err := Apply(ctx, store, c); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	again, _ := store.GetTemplate(ctx, def.ID)
	if again.Sent != 4 {
		t.Fatalf("expected counters kept, got %d", again.Sent)
	}
}

func TestApplyResolvesStepTemplates(t *testing.T) {
	ctx := context.Background()
	store := &capturingStore{Memory: repository.NewMemory()}
	c, _ := Parse(strings.NewReader(catalogYAML))
	if _, err := Apply(ctx, store, c); err != nil {
		t.Fatalf("apply: %v", err)
	}

	seq := store.lastSequence
	if len(seq.Steps) != 3 || !seq.Active {
		t.Fatalf("unexpected sequence: %+v", seq)
	}
	if seq.Steps[2].Channel != domain.ChannelEmail || seq.Steps[2].Delay() != 78*time.Hour {
		t.Fatalf("unexpected third step: %+v", seq.Steps[2])
	}
	if !seq.Steps[1].StopIfResponded || seq.Steps[1].StepNumber != 2 {
		t.Fatalf("unexpected second step: %+v", seq.Steps[1])
	}
}

type capturingStore struct {
	*repository.Memory
	lastSequence domain.Sequence
}

func (s *capturingStore) UpsertSequence(ctx context.Context, seq *domain.Sequence) error {
	if err := s.Memory.UpsertSequence(ctx, seq); err != nil {
		return err
	}
	s.lastSequence = *seq
	return nil
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "templates:\n  - name: A\n    chanel: sms\n"},
		{"bad channel", "templates:\n  - name: A\n    channel: fax\n    content: hi\n"},
		{"empty content", "templates:\n  - name: A\n    channel: sms\n"},
		{"unknown step template", "sequences:\n  - name: S\n    steps:\n      - template: Missing\n"},
		{"negative delay", "templates:\n  - name: A\n    channel: sms\n    content: hi\nsequences:\n  - name: S\n    steps:\n      - template: A\n        delay_days: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(strings.NewReader(tt.doc))
			if err == nil {
				_, err = Apply(context.Background(), repository.NewMemory(), c)
			}
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	if err != nil || len(c.Templates) != 0 {
		t.Fatalf("expected empty catalog, got %+v err=%v", c, err)
	}
}

func TestLoaderWatchReappliesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("templates: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := repository.NewMemory()
	loader := NewLoader(path, store, logger.NewWithWriter("development", io.Discard))
	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	doc := "templates:\n  - name: Ping\n    channel: sms\n    content: hi\n    default: true\n"
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		time.Sleep(400 * time.Millisecond)
		if tpl, err := store.GetDefaultTemplate(context.Background(), domain.ChannelSMS); err == nil && tpl.Name == "Ping" {
			return
		}
	}
	t.Fatal("catalog change was not applied")
}
