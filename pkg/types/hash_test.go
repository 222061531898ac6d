package types

import "testing"

func TestContentHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			name: "prompt text",
			text: "Translate French to English:",
			want: "2be3fbf526588b51939ab22160ee6739b86b9cf9d4788395e3be78fae1fa27d9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentHash(tt.text)
			if got != tt.want {
				t.Errorf("ContentHash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContentHashDeterminism(t *testing.T) {
	// Repeated calls must agree: the hash is the cache key for change
	// detection across runs.
	texts := []string{"", "a", "Translate French to English:", "unicode: héllo wörld 日本語"}
	for _, text := range texts {
		first := ContentHash(text)
		for i := 0; i < 3; i++ {
			if got := ContentHash(text); got != first {
				t.Errorf("ContentHash(%q) not stable: %v != %v", text, got, first)
			}
		}
	}
}

func TestContentHashNoNormalization(t *testing.T) {
	// Whitespace and case differences are real differences. Normalizing
	// before hashing would silently invalidate prior caches.
	a := ContentHash("Translate French to English:")
	b := ContentHash("Translate French to English: ")
	c := ContentHash("translate french to english:")
	if a == b || a == c {
		t.Error("ContentHash must distinguish texts differing only in whitespace or case")
	}
}
