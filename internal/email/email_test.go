package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lead_outreach_backend/internal/outreach/domain"
)

func TestRenderMessageHTMLEscapesAndSplitsParagraphs(t *testing.T) {
	html, err := renderMessageHTML("Hi", "Hello <Cafe>\n\nSecond paragraph", "Team")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Hello &lt;Cafe&gt;") {
		t.Fatal("expected body to be escaped")
	}
	if strings.Count(html, "<p ") != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", strings.Count(html, "<p "))
	}
}

func TestSubjectFor(t *testing.T) {
	if got := subjectFor(domain.Lead{Name: "Cafe"}, domain.Message{Subject: " Menu "}); got != "Menu" {
		t.Fatalf("expected explicit subject, got %q", got)
	}
	if got := subjectFor(domain.Lead{Name: "Cafe"}, domain.Message{}); got != "A quick idea for Cafe" {
		t.Fatalf("unexpected default subject %q", got)
	}
	if got := subjectFor(domain.Lead{}, domain.Message{}); got != subjectFallback {
		t.Fatalf("unexpected fallback subject %q", got)
	}
}

func TestSMTPBuildMessageSetsMessageID(t *testing.T) {
	transport := NewSMTPTransport("localhost", 25, "", "", "sales@example.com", "Sales")
	m, err := transport.buildMessage(domain.Lead{Name: "Cafe", Email: "owner@cafe.example"}, domain.Message{Body: "Hello"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.GetMessageID() == "" {
		t.Fatal("expected a generated Message-ID")
	}

	if _, err := transport.buildMessage(domain.Lead{Name: "Cafe"}, domain.Message{Body: "Hello"}); err == nil {
		t.Fatal("expected error without recipient")
	}
}

func TestBrevoDeliver(t *testing.T) {
	var got brevoEmailRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<202501011200.123@smtp-relay.mailin.fr>"}`))
	}))
	defer srv.Close()

	transport := NewBrevoTransport("key-1", "sales@example.com", "Sales")
	transport.endpoint = srv.URL

	id, err := transport.Deliver(context.Background(), domain.Lead{Name: "Cafe", Email: "owner@cafe.example"}, domain.Message{Body: "Hello", Variant: "B"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if id != "<202501011200.123@smtp-relay.mailin.fr>" {
		t.Fatalf("unexpected message id %q", id)
	}
	if apiKey != "key-1" || got.To[0].Email != "owner@cafe.example" || got.Subject != "A quick idea for Cafe" {
		t.Fatalf("unexpected request: key=%q payload=%+v", apiKey, got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "variant-B" {
		t.Fatalf("expected variant tag, got %v", got.Tags)
	}
}

func TestBrevoDeliverFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	transport := NewBrevoTransport("bad", "sales@example.com", "Sales")
	transport.endpoint = srv.URL
	if _, err := transport.Deliver(context.Background(), domain.Lead{Email: "a@b.example"}, domain.Message{Body: "x"}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}
