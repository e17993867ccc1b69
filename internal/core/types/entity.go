package types

import (
	"fmt"
	"strings"
)

// Entity is one recognized span. Start and End are character (rune) offsets
// into the source text, End exclusive.
type Entity struct {
	Value string
	Label string
	Start int
	End   int
}

func CreateEntityWithRune(label string, runes []rune, start, end int) Entity {
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		start = end
	}

	return Entity{
		Value: string(runes[start:end]),
		Label: label,
		Start: start,
		End:   end,
	}
}

func CreateEntity(label string, text string, start, end int) Entity {
	return CreateEntityWithRune(label, []rune(text), start, end)
}

func (e Entity) Shift(offset int) Entity {
	e.Start += offset
	e.End += offset
	return e
}

func (e Entity) Overlaps(other Entity) bool {
	return e.Start < other.End && other.Start < e.End
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func (e Entity) String() string {
	return fmt.Sprintf("Entity(value='%s', label='%s', start=%d, end=%d)", quoteEscaper.Replace(e.Value), quoteEscaper.Replace(e.Label), e.Start, e.End)
}

func FormatEntities(entities []Entity) string {
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, e.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
