package extract

import "testing"

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"simple", "<!DOCTYPE html><html><head><title>Tip Calculator</title></head></html>", "Tip Calculator"},
		{"whitespace collapsed", "<title>\n  Color   Picker\n</title>", "Color Picker"},
		{"entities decoded", "<title>Pros &amp; Cons</title>", "Pros & Cons"},
		{"first title wins", "<title>One</title><svg><title>Two</title></svg>", "One"},
		{"missing", "<html><body><h1>No title</h1></body></html>", ""},
		{"not html", "just text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.doc); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tip Calculator", "tip-calculator"},
		{"  Générateur de QR-Code!  ", "generateur-de-qr-code"},
		{"Productivity / Time Tracking", "productivity-time-tracking"},
		{"already-a-slug", "already-a-slug"},
		{"日本語", ""},
		{"", ""},
		{"A very long title that keeps going well past the limit of folder names", "a-very-long-title-that-keeps-going-well-past"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(got) > MaxSlugLen {
				t.Errorf("Slugify(%q) length %d exceeds %d", tt.in, len(got), MaxSlugLen)
			}
		})
	}
}
