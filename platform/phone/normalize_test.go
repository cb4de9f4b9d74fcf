package phone

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		region  string
		want    string
		wantErr error
	}{
		{name: "international albanian mobile", input: "+355 69 123 4567", region: "AL", want: "+355691234567"},
		{name: "national albanian mobile", input: "069 123 4567", region: "AL", want: "+355691234567"},
		{name: "dutch mobile", input: "06 12345678", region: "NL", want: "+31612345678"},
		{name: "empty", input: "   ", region: "AL", wantErr: ErrEmpty},
		{name: "letters", input: "call me", region: "AL", wantErr: ErrUnparseable},
		{name: "too short", input: "+355 1234", region: "AL", wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.input, tt.region)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNormalizeE164FallsBackToInput(t *testing.T) {
	if got := NormalizeE164(" not-a-number ", ""); got != "not-a-number" {
		t.Fatalf("expected trimmed input, got %q", got)
	}
	if got := NormalizeE164("+31 6 12345678", ""); got != "+31612345678" {
		t.Fatalf("expected E.164, got %q", got)
	}
}
