package extract

import (
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

var (
	htmlTags    = regexp.MustCompile(`<[^>]*>`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// PreprocessText strips HTML, lower-cases, collapses whitespace and clamps
// the result to the configured length bounds.
func (e *Extractor) PreprocessText(text string) string {
	text = htmlTags.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	if e.config.StripPunctuation {
		text = punctuation.ReplaceAllString(text, " ")
	}
	text = strings.ToLower(text)
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	if len(text) < e.config.MinLength {
		return ""
	}
	if e.config.MaxLength > 0 && len(text) > e.config.MaxLength {
		text = truncate(text, e.config.MaxLength)
	}
	return text
}

// truncate cuts text to at most max bytes, preferring the last space when
// it falls within the final 20% of the limit.
func truncate(text string, max int) string {
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx >= 0 && float64(idx) >= float64(max)*0.8 {
		cut = cut[:idx]
	} else {
		// don't split a multi-byte rune
		for len(cut) > 0 && !isRuneStart(text[len(cut)]) {
			cut = cut[:len(cut)-1]
		}
	}
	return strings.TrimSpace(cut)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// GenerateContentHash returns the hex BLAKE2b-256 digest of text.
func GenerateContentHash(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateContentHash hashes text. Provided on the extractor so callers can
// depend on a single component.
func (e *Extractor) GenerateContentHash(text string) string {
	return GenerateContentHash(text)
}

// EstimateTokens approximates the provider token count of text as one token
// per four characters, rounded up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
