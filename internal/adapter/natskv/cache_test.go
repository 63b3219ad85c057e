package natskv

import "testing"

func TestKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"litellm.models", "litellm.models"},
		{"models:azure-openai", "models_azure-openai"},
		{"a b*c>d", "a_b_c_d"},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
