package fingerprint

import (
	"testing"

	"github.com/kebairia/dbshield/internal/config"
)

func TestShouldSkip(t *testing.T) {
	cases := []struct {
		name  string
		fresh Fingerprint
		last  string
		want  bool
	}{
		{"identical", "abc123", "abc123", true},
		{"different", "abc123", "def456", false},
		{"no prior fingerprint", "abc123", "", false},
		{"empty fresh with prior", "", "abc123", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldSkip(tc.fresh, tc.last); got != tc.want {
				t.Errorf("ShouldSkip(%q, %q) = %v, want %v", tc.fresh, tc.last, got, tc.want)
			}
		})
	}
}

func TestProberFor(t *testing.T) {
	for _, engine := range []config.Engine{config.EngineMariaDB, config.EnginePostgres} {
		p, err := ProberFor(engine)
		if err != nil {
			t.Errorf("ProberFor(%q) returned error: %v", engine, err)
		}
		if p == nil {
			t.Errorf("ProberFor(%q) returned nil prober", engine)
		}
	}
	if _, err := ProberFor(config.Engine("sqlite")); err == nil {
		t.Error("ProberFor with unknown engine should fail")
	}
}
