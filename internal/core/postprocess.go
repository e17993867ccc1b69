package core

import (
	"fmt"
	"strings"

	"ner-gazetteer/internal/core/types"

	"github.com/dlclark/regexp2"
)

var (
	phoneShape = regexp2.MustCompile(
		`^(?<number>\+?\(?[0-9][0-9 ().-]*[0-9])(?:\s*(?:x|ext\.?|extension)\s*[0-9]{1,6})?$`,
		regexp2.IgnoreCase,
	)

	// separators, when present, must be the same on both sides of the group
	ssnShape = regexp2.MustCompile(`^(?<area>[0-9]{3})([- .]?)(?<group>[0-9]{2})\1(?<serial>[0-9]{4})$`, regexp2.None)

	cardShape = regexp2.MustCompile(`^[0-9](?:[ -]?[0-9])+$`, regexp2.None)
)

const creditScoreWindow = 24

// spanValidator reports whether a run of spans sharing a structured label
// really holds that kind of value. run.Value is the run's text.
type spanValidator func(text []rune, run types.Entity) bool

var spanValidators = map[string]spanValidator{
	"PHONENUMBER":  func(_ []rune, run types.Entity) bool { return isValidPhone(run.Value) },
	"CARD_NUMBER":  func(_ []rune, run types.Entity) bool { return isValidCard(run.Value) },
	"SSN":          func(_ []rune, run types.Entity) bool { return isValidSSN(run.Value) },
	"EMAIL":        func(_ []rune, run types.Entity) bool { return isValidEmail(run.Value) },
	"CREDIT_SCORE": isCreditScore,
}

// checkSpans rejects spans that do not fit inside a text of n runes.
func checkSpans(n int, spans []types.Entity) error {
	for _, s := range spans {
		if s.Start < 0 || s.Start > s.End || s.End > n {
			return fmt.Errorf("span %s [%d, %d) is outside text of length %d", s.Label, s.Start, s.End, n)
		}
	}
	return nil
}

// ValidateSpans drops spans with structured labels whose text fails
// validation. Word taggers split one identifier over several spans, so
// neighbouring spans with the same label at most one rune apart are checked
// as a single run and kept or dropped together. Spans must already lie
// inside text.
func ValidateSpans(text []rune, spans []types.Entity) []types.Entity {
	out := make([]types.Entity, 0, len(spans))
	for i := 0; i < len(spans); {
		validate, ok := spanValidators[spans[i].Label]
		if !ok {
			out = append(out, spans[i])
			i++
			continue
		}

		j := i + 1
		for j < len(spans) && spans[j].Label == spans[i].Label && continuesRun(spans[j-1], spans[j]) {
			j++
		}

		run := types.CreateEntityWithRune(spans[i].Label, text, spans[i].Start, spans[j-1].End)
		if validate(text, run) {
			out = append(out, spans[i:j]...)
		}
		i = j
	}
	return out
}

func continuesRun(prev, next types.Entity) bool {
	gap := next.Start - prev.End
	return gap == 0 || gap == 1
}

func isValidPhone(v string) bool {
	m, err := phoneShape.FindStringMatch(strings.TrimSpace(v))
	if err != nil || m == nil {
		return false
	}
	n := len(stripNonDigits(m.GroupByName("number").String()))
	return n >= 7 && n <= 15
}

func isValidSSN(v string) bool {
	m, err := ssnShape.FindStringMatch(strings.TrimSpace(v))
	if err != nil || m == nil {
		return false
	}
	area := m.GroupByName("area").String()
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return m.GroupByName("group").String() != "00" && m.GroupByName("serial").String() != "0000"
}

func isValidCard(v string) bool {
	v = strings.TrimSpace(v)
	if ok, err := cardShape.MatchString(v); err != nil || !ok {
		return false
	}
	digits := stripNonDigits(v)
	return len(digits) >= 12 && len(digits) <= 19 && luhnValid(digits)
}

func isValidEmail(v string) bool {
	local, domain, ok := strings.Cut(v, "@")
	if !ok || local == "" || strings.ContainsAny(local, " @") || strings.ContainsAny(domain, " @") {
		return false
	}
	if strings.EqualFold(domain, "localhost") {
		return true
	}
	for _, part := range strings.Split(domain, ".") {
		if part == "" {
			return false
		}
	}
	return strings.Contains(domain, ".")
}

// isCreditScore accepts a number in the usual score range when "credit" and
// "score" both appear near it.
func isCreditScore(text []rune, run types.Entity) bool {
	digits := stripNonDigits(run.Value)
	if len(digits) != len(strings.TrimSpace(run.Value)) || len(digits) != 3 {
		return false
	}
	if digits < "300" || digits > "850" {
		return false
	}
	before := string(text[max(run.Start-creditScoreWindow, 0):run.Start])
	after := string(text[run.End:min(run.End+creditScoreWindow, len(text))])
	around := strings.ToLower(before + " " + after)
	return strings.Contains(around, "credit") && strings.Contains(around, "score")
}

func stripNonDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			if d *= 2; d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
