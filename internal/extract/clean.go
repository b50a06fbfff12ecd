package extract

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe        = regexp.MustCompile(`<[^>]+>`)
	urlRe            = regexp.MustCompile(`http\S+|www\.\S+`)
	emailRe          = regexp.MustCompile(`\S+@\S+`)
	dashRe           = regexp.MustCompile(`[‐‑‒–—]`)
	specialCharsRe   = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-'/]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	repeatedPunctRe  = regexp.MustCompile(`([.,!?;:]){2,}`)
	bulletRe         = regexp.MustCompile(`[•◦▪▫●○■□]`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?])`)
)

// CleanText strips markup, links, e-mail addresses and unusual symbols from a
// posting and normalizes whitespace. Typographic dashes become hyphens so
// ranges such as "3–5 years" survive.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = htmlTagRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = dashRe.ReplaceAllString(text, "-")
	text = specialCharsRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = repeatedPunctRe.ReplaceAllString(text, "${1}")

	return strings.TrimSpace(text)
}

// CleanDocumentText tidies text produced by an external document parser
// (bullet glyphs, stray whitespace before punctuation).
func CleanDocumentText(text string) string {
	if text == "" {
		return ""
	}

	text = bulletRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "${1}")

	return strings.TrimSpace(text)
}
