package template

import (
	"context"
	"testing"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
)

func TestRenderReplacesPlaceholders(t *testing.T) {
	lead := domain.Lead{Name: "Cafe Roma", City: "Tirana", Country: "Albania", Rating: 4.8, Category: "cafe"}
	lead.SetScore(72)

	got := Render("Hi {name} in {city}, {country}! {rating} stars, {temperature} ({score}) {unknown}", lead)
	want := "Hi Cafe Roma in Tirana, Albania! 4.8 stars, HOT (72) {unknown}"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestFallbackPrefersPregeneratedMessage(t *testing.T) {
	if got := Fallback(domain.Lead{Name: "Bar X", FirstMessage: "Hello {name}"}).Body; got != "Hello Bar X" {
		t.Fatalf("unexpected fallback: %q", got)
	}
	if got := Fallback(domain.Lead{Name: "Bar X"}).Body; got != "Hi! I saw Bar X on Google and wanted to reach out." {
		t.Fatalf("unexpected default fallback: %q", got)
	}
}

func TestSelectVariant(t *testing.T) {
	tests := []struct {
		name     string
		variants []domain.Template
		want     string
	}{
		{
			name: "proven variant beats weak one",
			variants: []domain.Template{
				{Name: "A", Sent: 100, Responded: 5},
				{Name: "B", Sent: 100, Responded: 40},
			},
			want: "B",
		},
		{
			name: "unsent variant gets explored",
			variants: []domain.Template{
				{Name: "A", Sent: 10, Responded: 2},
				{Name: "B"},
			},
			want: "B",
		},
		{
			name:     "first wins ties",
			variants: []domain.Template{{Name: "A"}, {Name: "B"}},
			want:     "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectVariant(tt.variants)
			if !ok || got.Name != tt.want {
				t.Fatalf("SelectVariant() = %q, want %q", got.Name, tt.want)
			}
		})
	}

	if _, ok := SelectVariant(nil); ok {
		t.Fatal("expected no variant from empty list")
	}
}

func TestResolvePicksVariantForCategory(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	base := &domain.Template{Name: "Intro", Channel: domain.ChannelWhatsApp, Content: "A {name}", Variant: "A", Active: true, IsDefault: true}
	restaurant := &domain.Template{Name: "Intro - B", Channel: domain.ChannelWhatsApp, Content: "B {name}", Variant: "B", Category: "restaurant", Active: true}
	for _, tpl := range []*domain.Template{base, restaurant} {
		if err := store.UpsertTemplate(ctx, tpl); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := store.IncrementTemplateStats(ctx, base.ID, domain.TemplateStats{Sent: 60, Responded: 3}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	resolver := NewResolver(store)

	msg, err := resolver.Resolve(ctx, domain.Lead{Name: "Trattoria", Category: "restaurant"}, domain.ChannelWhatsApp, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if msg.Body != "B Trattoria" || msg.Variant != "B" {
		t.Fatalf("expected restaurant variant, got %+v", msg)
	}

	msg, err = resolver.Resolve(ctx, domain.Lead{Name: "Salon", Category: "beauty"}, domain.ChannelWhatsApp, &base.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if msg.Body != "A Salon" || msg.TemplateID == nil || *msg.TemplateID != base.ID {
		t.Fatalf("expected base template, got %+v", msg)
	}
}

func TestResolveFallsBackWithoutTemplate(t *testing.T) {
	resolver := NewResolver(repository.NewMemory())
	msg, err := resolver.Resolve(context.Background(), domain.Lead{Name: "Gym"}, domain.ChannelSMS, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if msg.TemplateID != nil || msg.Body != "Hi! I saw Gym on Google and wanted to reach out." {
		t.Fatalf("unexpected fallback message: %+v", msg)
	}
}
