package relevance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRelevant_RejectsTrivialText(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: " \t\n "},
		{name: "two chars", text: "hi"},
		{name: "two chars padded", text: "  ab  "},
		{name: "two runes multibyte", text: "çé"},
		{name: "digits", text: "12345"},
		{name: "punctuation", text: "?!..."},
		{name: "digits and symbols", text: " 07 700 900 123 + ## "},
		{name: "emoji only", text: "👍👍👍"},
		{name: "ok", text: "ok"},
		{name: "OK padded", text: "  OK "},
		{name: "yes", text: "Yes"},
		{name: "no", text: "NO"},
		{name: "thanks", text: "Thanks"},
		{name: "thx", text: "thx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.False(t, IsRelevant(tc.text), "text=%q", tc.text)
		})
	}
}

func TestIsRelevant_AcceptsQuestions(t *testing.T) {
	cases := []string{
		"Is the flat on Main St still available?",
		"hey",
		"thanks a lot for the viewing",
		"okay",
		"no pets allowed?",
		"Flat 2B",
		"¿Está disponible?",
	}
	for _, text := range cases {
		require.True(t, IsRelevant(text), "text=%q", text)
	}
}
