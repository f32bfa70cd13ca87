package verify

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"p240819126", "P240819126"},
		{"P240819126", "P240819126"},
		{"h250801055", "H250801055"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestOutcome_Exists(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    *bool
	}{
		{"exists", existsOutcome("P1", 1), boolPtr(true)},
		{"not found", notFoundOutcome("P1", 8*time.Second), boolPtr(false)},
		{"unknown", unknownOutcome("P1", msgConnectionError, nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.outcome.Exists()
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Exists() = %v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Exists() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindExists:   "exists",
		KindNotFound: "not_found",
		KindUnknown:  "unknown",
		Kind(99):     "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestNotFoundOutcome_Message(t *testing.T) {
	o := notFoundOutcome("P240819126", 8*time.Second)
	want := "Device P240819126 sent no MQTT data within 8s"
	if o.Message != want {
		t.Errorf("Message = %q, want %q", o.Message, want)
	}
	if o.Hint != NotFoundHint {
		t.Errorf("Hint = %q", o.Hint)
	}
}

func boolPtr(v bool) *bool { return &v }
