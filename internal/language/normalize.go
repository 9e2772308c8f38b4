package language

import "strings"

// aliases maps names and three-letter codes collectors send to ISO 639-1.
var aliases = map[string]string{
	"tur":         "tr",
	"turkish":     "tr",
	"türkçe":      "tr",
	"turkce":      "tr",
	"eng":         "en",
	"english":     "en",
	"ingilizce":   "en",
	"deu":         "de",
	"ger":         "de",
	"german":      "de",
	"almanca":     "de",
	"ara":         "ar",
	"arabic":      "ar",
	"arapça":      "ar",
	"rus":         "ru",
	"russian":     "ru",
	"rusça":       "ru",
	"aze":         "az",
	"azerbaijani": "az",
	"kur":         "ku",
	"kurdish":     "ku",
	"kürtçe":      "ku",
}

// NormalizeCode turns a language hint into a lower-case ISO 639-1 code.
// Region subtags are dropped ("tr-TR" -> "tr"). Unusable input yields "".
func NormalizeCode(raw string) string {
	hint := strings.ToLower(strings.TrimSpace(raw))
	if hint == "" {
		return ""
	}
	if code, ok := aliases[hint]; ok {
		return code
	}

	primary := hint
	if cut := strings.IndexAny(hint, "-_"); cut >= 0 {
		primary = hint[:cut]
	}
	if code, ok := aliases[primary]; ok {
		return code
	}
	if len(primary) != 2 || !isASCIILower(primary) {
		return ""
	}
	return primary
}

func isASCIILower(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 'a' || value[i] > 'z' {
			return false
		}
	}
	return true
}
