package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

const escapedPunct = "\\,\\.\\!\\?;:\\-_" + `"'` + "`" + "\\)\\]\\}\\(\\[\\{"

// regexp2 reports match positions in runes, so every span produced here is a
// character offset into the original text.
var (
	patternBeforeSpace = regexp2.MustCompile(
		fmt.Sprintf(`(?<=\S)[%s]+(?=\s|$)`, escapedPunct), regexp2.None,
	)

	patternAfterSpace = regexp2.MustCompile(
		fmt.Sprintf(`(?<=^|\s)[%s]+(?=\S)`, escapedPunct), regexp2.None,
	)

	tokenRe = regexp2.MustCompile(`\S+`, regexp2.None)
)

type Token struct {
	Text  string
	Start int
	End   int
}

func blankMatches(re *regexp2.Regexp, text string) string {
	result, err := re.ReplaceFunc(text, func(m regexp2.Match) string {
		return strings.Repeat(" ", m.Length)
	}, -1, -1)
	if err != nil {
		// only returned on match timeout, which is never configured
		return text
	}
	if utf8.RuneCountInString(result) != utf8.RuneCountInString(text) {
		panic("length changed while blanking punctuation")
	}
	return result
}

func replacePunctFollowedBySpace(text string) string {
	return blankMatches(patternBeforeSpace, text)
}

func replacePunctAfterSpace(text string) string {
	return blankMatches(patternAfterSpace, text)
}

func findTokenSpans(text string) [][2]int {
	spans := make([][2]int, 0)
	m, err := tokenRe.FindStringMatch(text)
	for err == nil && m != nil {
		spans = append(spans, [2]int{m.Index, m.Index + m.Length})
		m, err = tokenRe.FindNextMatch(m)
	}
	return spans
}

// CleanTextWithSpans strips punctuation hugging word boundaries and returns
// the remaining tokens joined by single spaces, along with each token's
// character span in the original text.
func CleanTextWithSpans(text string) (string, [][2]int) {
	t := replacePunctFollowedBySpace(text)
	t = replacePunctAfterSpace(t)

	runes := []rune(t)
	spans := findTokenSpans(t)
	tokens := make([]string, 0, len(spans))
	for _, span := range spans {
		tokens = append(tokens, string(runes[span[0]:span[1]]))
	}
	return strings.Join(tokens, " "), spans
}

func Tokenize(text string) []Token {
	_, spans := CleanTextWithSpans(text)
	runes := []rune(text)

	tokens := make([]Token, 0, len(spans))
	for _, span := range spans {
		tokens = append(tokens, Token{
			Text:  string(runes[span[0]:span[1]]),
			Start: span[0],
			End:   span[1],
		})
	}
	return tokens
}
