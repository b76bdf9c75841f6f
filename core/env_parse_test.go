package core

import "testing"

func TestGetEnvOrDefault(t *testing.T) {
	const key = "TEST_LLAMA_GET_ENV"

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"returns env value when set", "custom", "custom"},
		{"returns default when empty", "", "default"},
		{"trims whitespace", "  spaced  ", "spaced"},
		{"whitespace only falls back", "   ", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := GetEnvOrDefault(key, "default"); got != tt.want {
				t.Errorf("GetEnvOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	const key = "TEST_LLAMA_INT_ENV"

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "42", 42},
		{"negative", "-1", -1},
		{"invalid", "abc", 7},
		{"float", "1.5", 7},
		{"empty", "", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := ParseIntEnv(key, 7); got != tt.want {
				t.Errorf("ParseIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseInt64Env(t *testing.T) {
	const key = "TEST_LLAMA_INT64_ENV"

	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{"decimal", "1234", 1234},
		{"hex", "0xFFFFFFFF", 0xFFFFFFFF},
		{"invalid", "nope", 9},
		{"empty", "", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := ParseInt64Env(key, 9); got != tt.want {
				t.Errorf("ParseInt64Env() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFloat64Env(t *testing.T) {
	const key = "TEST_LLAMA_FLOAT_ENV"

	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"valid", "0.25", 0.25},
		{"integer", "2", 2},
		{"invalid", "x", 0.5},
		{"empty", "", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := ParseFloat64Env(key, 0.5); got != tt.want {
				t.Errorf("ParseFloat64Env() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	const key = "TEST_LLAMA_BOOL_ENV"

	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}
