package logging

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"none", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPathHonoursXDGStateHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("HOME", dir)

	want := filepath.Join(dir, "audioviz", "audioviz.log")
	got := Path()
	// darwin and windows ignore XDG_STATE_HOME; only the suffix is stable there
	if filepath.Base(got) != "audioviz.log" {
		t.Fatalf("unexpected log file name %s", got)
	}
	if got != want && filepath.Base(filepath.Dir(got)) != "audioviz" {
		t.Errorf("expected log under an audioviz directory, got %s", got)
	}
}
