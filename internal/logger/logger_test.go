package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"verbose":  zapcore.DebugLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel(WarnLevel) {
		t.Error("warn should be valid")
	}
	if ValidLevel("trace") {
		t.Error("trace should not be valid")
	}
}

func TestGetReturnsSingleton(t *testing.T) {
	a := Get(InfoLevel)
	b := Get(ErrorLevel)
	if a != b {
		t.Fatal("expected the same logger instance")
	}
}

func TestWithKeepsWrapper(t *testing.T) {
	l := Nop().With("component", "test")
	if l == nil || l.SugaredLogger == nil {
		t.Fatal("expected wrapped logger")
	}
	l.Infow("noop", "k", 1)
}
