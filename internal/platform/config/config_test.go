package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "value")
	if got := GetEnv("CFG_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q, want %q", got, "value")
	}
	if got := GetEnv("CFG_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv unset = %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback int
		want     int
	}{
		{"valid", "42", 7, 42},
		{"invalid", "abc", 7, 7},
		{"empty", "", 7, 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.value != "" {
				t.Setenv("CFG_TEST_INT", tc.value)
			}
			if got := GetEnvInt("CFG_TEST_INT", tc.fallback); got != tc.want {
				t.Errorf("GetEnvInt(%q) = %d, want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("CFG_TEST_DUR", "250ms")
	if got := GetEnvDuration("CFG_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("GetEnvDuration = %v", got)
	}
	t.Setenv("CFG_TEST_DUR", "nonsense")
	if got := GetEnvDuration("CFG_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration invalid = %v, want fallback", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("CFG_TEST_BOOL", "false")
	if GetEnvBool("CFG_TEST_BOOL", true) {
		t.Error("GetEnvBool should honor explicit false")
	}
	t.Setenv("CFG_TEST_BOOL", "maybe")
	if !GetEnvBool("CFG_TEST_BOOL", true) {
		t.Error("GetEnvBool should fall back on unparsable input")
	}
}

func TestGetEnvUint64List(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []uint64
	}{
		{"plain", "21452505,81004", []uint64{21452505, 81004}},
		{"spaces_and_gaps", " 1, ,2 ", []uint64{1, 2}},
		{"invalid_skipped", "5,abc,7", []uint64{5, 7}},
		{"empty", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.value != "" {
				t.Setenv("CFG_TEST_LIST", tc.value)
			}
			got := GetEnvUint64List("CFG_TEST_LIST")
			if len(got) != len(tc.want) {
				t.Fatalf("GetEnvUint64List(%q) = %v, want %v", tc.value, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("element %d = %d, want %d", i, got[i], tc.want[i])
				}
			}
		})
	}
}
