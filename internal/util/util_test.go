package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", "unnamed"},
		{"whitespace", "   ", "unnamed"},
		{"plain", "unit_box_1", "unit_box_1"},
		{"separators", "a/b\\c", "a_b_c"},
		{"spaces and colon", "run 1: box", "run_1__box"},
		{"keeps dots and dashes", "world-ode.v2", "world-ode.v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFileName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestJoinNames(t *testing.T) {
	if got := JoinNames("unit_box_1", "", "my model"); got != "unit_box_1_my_model" {
		t.Errorf("JoinNames = %q", got)
	}
	if got := JoinNames(); got != "" {
		t.Errorf("JoinNames() = %q, want empty", got)
	}
}
