package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"YES", false, true},
		{"1", false, true},
		{"off", true, false},
		{"0", true, false},
		{"banana", true, true},
		{"banana", false, false},
	}
	for _, tc := range cases {
		t.Setenv("SEVAFLOW_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("SEVAFLOW_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("SEVAFLOW_TEST_INT", "42")
	if got := ParseIntEnv("SEVAFLOW_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("SEVAFLOW_TEST_INT", "not a number")
	if got := ParseIntEnv("SEVAFLOW_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
	t.Setenv("SEVAFLOW_TEST_INT", "")
	if got := ParseIntEnv("SEVAFLOW_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 for unset, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("SEVAFLOW_TEST_DUR", "90s")
	if got := ParseDurationEnv("SEVAFLOW_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
	t.Setenv("SEVAFLOW_TEST_DUR", "soon")
	if got := ParseDurationEnv("SEVAFLOW_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("expected default, got %v", got)
	}
}
