package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest sample worth classifying.
const minLetters = 12

// Languages seen in Turkish local news feeds.
var candidates = []lingua.Language{
	lingua.Turkish,
	lingua.English,
	lingua.German,
	lingua.Arabic,
	lingua.Russian,
	lingua.Azerbaijani,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns a two-letter code or "" when the text is too short or ambiguous.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	lang, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(lang.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidates...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}
