package engine

// Auto is the language selection that requests detection.
const Auto = "auto"

// languageCodes maps the configured language names exposed over the
// protocol to ISO 639-1 codes the backends understand.
var languageCodes = map[string]string{
	"english":   "en",
	"hindi":     "hi",
	"tamil":     "ta",
	"telugu":    "te",
	"kannada":   "kn",
	"malayalam": "ml",
	"bengali":   "bn",
	"punjabi":   "pa",
	"marathi":   "mr",
	"gujarati":  "gu",
	"urdu":      "ur",
}

// LanguageCode resolves a configured language name to its ISO code.
// Auto and unknown names resolve to ("", false).
func LanguageCode(name string) (string, bool) {
	if name == "" || name == Auto {
		return "", false
	}
	code, ok := languageCodes[name]
	return code, ok
}
