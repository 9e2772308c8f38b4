package language

import "testing"

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		" TR-tr ":  "tr",
		"en_US":    "en",
		"Türkçe":   "tr",
		"deu":      "de",
		"ara-SA":   "ar",
		"ru":       "ru",
		" ":        "",
		"123":      "",
		"klingon":  "",
		"t1":       "",
	}
	for raw, want := range cases {
		if got := NormalizeCode(raw); got != want {
			t.Fatalf("NormalizeCode(%q) = %q, want %q", raw, got, want)
		}
	}
}
