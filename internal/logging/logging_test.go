package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":       zapcore.WarnLevel,
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"error":  zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewHonoursDebug(t *testing.T) {
	l, err := New("error", false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be disabled at error level")
	}
	l, err = New("error", true)
	if err != nil {
		t.Fatalf("new debug: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug flag should enable debug level")
	}
	if _, err := New("nope", false); err == nil {
		t.Fatalf("expected error")
	}
}
