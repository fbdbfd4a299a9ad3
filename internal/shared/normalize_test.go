package shared

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"lowercases", "Master Of Puppets", "master of puppets"},
		{"strips punctuation", "AC/DC: Back in Black!", "acdc back in black"},
		{"folds whitespace", "  The   Dark  Side ", "the dark side"},
		{"keeps cyrillic", "Гражданская Оборона", "гражданская оборона"},
		{"keeps digits", "1984 (Remaster)", "1984 remaster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	a := NormalizeKey("Master of Puppets", "Metallica")
	b := NormalizeKey("master OF puppets!", "METALLICA")
	if a != b {
		t.Errorf("expected equal keys, got %q and %q", a, b)
	}
}
