package generator

import "strings"

const (
	// TextPlaceholder marks where the user text goes in the prompt template
	TextPlaceholder = "{{text}}"
	// DefaultPrompt is a supportive assistant instruction
	DefaultPrompt = "You are a warm and supportive assistant. The user has just said the following. " +
		"Reply kindly and encouragingly in a few short sentences that sound natural when spoken aloud. " +
		"Do not use lists, markdown or emojis.\n\nUser said: " + TextPlaceholder
)

// MakePrompt puts text into the template, text is appended if the template has no placeholder
func MakePrompt(template, text string) string {
	if template == "" {
		template = DefaultPrompt
	}
	if !strings.Contains(template, TextPlaceholder) {
		return template + "\n\n" + text
	}
	return strings.ReplaceAll(template, TextPlaceholder, text)
}
