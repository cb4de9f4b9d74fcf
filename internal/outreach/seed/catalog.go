// Package seed loads the template and sequence catalog from a YAML file.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Catalog is the YAML document:
//
//	templates:
//	  - name: Intro - A
//	    channel: whatsapp
//	    content: "Hi {name}!"
//	sequences:
//	  - name: Three touch
//	    steps:
//	      - template: Intro - A
//	        delay_days: 0
type Catalog struct {
	Templates []TemplateEntry `yaml:"templates"`
	Sequences []SequenceEntry `yaml:"sequences"`
}

type TemplateEntry struct {
	Name     string `yaml:"name"`
	Channel  string `yaml:"channel"`
	Subject  string `yaml:"subject"`
	Content  string `yaml:"content"`
	Variant  string `yaml:"variant"`
	Category string `yaml:"category"`
	Active   *bool  `yaml:"active"`
	Default  bool   `yaml:"default"`
}

type SequenceEntry struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Active      *bool       `yaml:"active"`
	Steps       []StepEntry `yaml:"steps"`
}

type StepEntry struct {
	Template        string `yaml:"template"`
	Channel         string `yaml:"channel"`
	DelayDays       int    `yaml:"delay_days"`
	DelayHours      int    `yaml:"delay_hours"`
	StopIfResponded bool   `yaml:"stop_if_responded"`
}

// Parse decodes a catalog, rejecting unknown keys.
func Parse(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, nil
		}
		return Catalog{}, fmt.Errorf("decode seed catalog: %w", err)
	}
	return c, nil
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read seed catalog: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Store is where the catalog is written.
type Store interface {
	UpsertTemplate(ctx context.Context, tpl *domain.Template) error
	UpsertSequence(ctx context.Context, seq *domain.Sequence) error
}

// Result counts what Apply wrote.
type Result struct {
	Templates int
	Sequences int
}

// Apply upserts templates by name, then sequences whose steps reference
// templates by name. Delivery counters of existing templates are kept.
func Apply(ctx context.Context, store Store, c Catalog) (Result, error) {
	var res Result
	ids := make(map[string]domain.Template, len(c.Templates))

	for _, entry := range c.Templates {
		tpl, err := entry.toDomain()
		if err != nil {
			return res, err
		}
		if err := store.UpsertTemplate(ctx, &tpl); err != nil {
			return res, fmt.Errorf("upsert template %q: %w", tpl.Name, err)
		}
		ids[strings.ToLower(tpl.Name)] = tpl
		res.Templates++
	}

	for _, entry := range c.Sequences {
		seq, err := entry.toDomain(ids)
		if err != nil {
			return res, err
		}
		if err := store.UpsertSequence(ctx, &seq); err != nil {
			return res, fmt.Errorf("upsert sequence %q: %w", seq.Name, err)
		}
		res.Sequences++
	}
	return res, nil
}

func (e TemplateEntry) toDomain() (domain.Template, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return domain.Template{}, errors.New("seed template without a name")
	}
	ch, err := domain.ParseChannel(e.Channel)
	if err != nil {
		return domain.Template{}, fmt.Errorf("template %q: %w", name, err)
	}
	if strings.TrimSpace(e.Content) == "" {
		return domain.Template{}, fmt.Errorf("template %q: content is empty", name)
	}
	variant := e.Variant
	if variant == "" {
		if _, suffix, ok := strings.Cut(name, " - "); ok {
			variant = strings.TrimSpace(suffix)
		}
	}
	return domain.Template{
		Name:      name,
		Channel:   ch,
		Subject:   e.Subject,
		Content:   e.Content,
		Variant:   variant,
		Category:  e.Category,
		Active:    e.Active == nil || *e.Active,
		IsDefault: e.Default,
	}, nil
}

func (e SequenceEntry) toDomain(templates map[string]domain.Template) (domain.Sequence, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return domain.Sequence{}, errors.New("seed sequence without a name")
	}
	seq := domain.Sequence{
		Name:        name,
		Description: e.Description,
		Active:      e.Active == nil || *e.Active,
		Steps:       make([]domain.SequenceStep, 0, len(e.Steps)),
	}
	for i, step := range e.Steps {
		tpl, ok := templates[strings.ToLower(strings.TrimSpace(step.Template))]
		if !ok || tpl.ID == uuid.Nil {
			return domain.Sequence{}, fmt.Errorf("sequence %q step %d: unknown template %q", name, i+1, step.Template)
		}
		ch := tpl.Channel
		if step.Channel != "" {
			parsed, err := domain.ParseChannel(step.Channel)
			if err != nil {
				return domain.Sequence{}, fmt.Errorf("sequence %q step %d: %w", name, i+1, err)
			}
			ch = parsed
		}
		seq.Steps = append(seq.Steps, domain.SequenceStep{
			StepNumber:      i + 1,
			Channel:         ch,
			TemplateID:      tpl.ID,
			DelayDays:       step.DelayDays,
			DelayHours:      step.DelayHours,
			StopIfResponded: step.StopIfResponded,
		})
	}
	if err := seq.Normalize(); err != nil {
		return domain.Sequence{}, err
	}
	return seq, nil
}
