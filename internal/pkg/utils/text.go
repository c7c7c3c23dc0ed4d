package utils

import (
	"strings"
	"unicode"
)

const (
	// Ellipsis is appended to text cut not at the sentence end
	Ellipsis = "..."
	// sentence end must be found after this part of the window
	sentenceEndRatio = 0.7
)

// Truncate limits text to max characters.
// It prefers to cut after the last sentence terminator if it lies after 70% of the window,
// then at the last whitespace, and only then in the middle of a word.
// Ellipsis is appended in the last two cases, so the result may be up to max+3 characters long.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	window := runes[:max]
	if i := lastIndex(window, isSentenceEnd); i >= 0 && float64(i) > float64(max)*sentenceEndRatio {
		return string(window[:i+1])
	}
	if i := lastIndex(window, unicode.IsSpace); i > 0 {
		if res := strings.TrimRightFunc(string(window[:i]), unicode.IsSpace); res != "" {
			return res + Ellipsis
		}
	}
	return string(window) + Ellipsis
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func lastIndex(rs []rune, f func(rune) bool) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if f(rs[i]) {
			return i
		}
	}
	return -1
}
