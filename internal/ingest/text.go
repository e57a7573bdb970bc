package ingest

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinChunkSize is the shortest fragment, in characters, kept as a chunk.
const DefaultMinChunkSize = 100

const paragraphBreak = "\n\n"

// ErrNoContent means a document yielded no usable chunk.
var ErrNoContent = errors.New("no usable text extracted from document")

var (
	horizontalSpace = regexp.MustCompile(`[^\S\n]+`)
	lineBreaks      = regexp.MustCompile(`[^\S\n]*\n\s*`)
	hyphenBreak     = regexp.MustCompile(`([\p{L}\p{N}_])-\n([\p{L}\p{N}_])`)
)

// Normalize cleans up extraction artifacts. Runs of spaces and tabs collapse
// to one space, a whitespace run holding two or more newlines becomes a
// paragraph break, any other line break becomes a single newline, and words
// hyphenated across a line break are joined.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = lineBreaks.ReplaceAllStringFunc(text, func(run string) string {
		if strings.Count(run, "\n") >= 2 {
			return paragraphBreak
		}
		return "\n"
	})
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	return strings.TrimSpace(text)
}

// Chunk splits normalized text into paragraphs and keeps those of at least
// minSize characters. Text without paragraph breaks, or whose paragraphs are
// all too short, is split on single line breaks instead. An empty result
// means nothing usable was extracted.
func Chunk(text string, minSize int) []string {
	if minSize <= 0 {
		minSize = DefaultMinChunkSize
	}
	var chunks []string
	if strings.Contains(text, paragraphBreak) {
		chunks = split(text, paragraphBreak, minSize)
	}
	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		chunks = split(text, "\n", minSize)
	}
	return chunks
}

func split(text, sep string, minSize int) []string {
	var out []string
	for _, part := range strings.Split(text, sep) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) >= minSize {
			out = append(out, part)
		}
	}
	return out
}
