package core

import (
	"testing"

	"ner-gazetteer/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenSpans labels tokens [from, to) of text the way a word tagger would.
func tokenSpans(text, label string, from, to int) []types.Entity {
	var spans []types.Entity
	for _, tok := range Tokenize(text)[from:to] {
		spans = append(spans, types.CreateEntity(label, text, tok.Start, tok.End))
	}
	return spans
}

func TestModelAnnotatorValidatesWordSpans(t *testing.T) {
	text := "Zoë’s card → 4111 1111 1111 1111 and 4111 1111 1111 1112"
	valid := tokenSpans(text, "CARD_NUMBER", 3, 7)
	invalid := tokenSpans(text, "CARD_NUMBER", 8, 12)

	p := NewPipeline(NewModelAnnotator(spanModel{spans: append(append([]types.Entity{}, valid...), invalid...)}, Plugin))
	doc, err := p.Process(text)
	require.NoError(t, err)

	entities := doc.Entities(KeepAll)
	require.Equal(t, valid, entities)
	assert.Equal(t, 13, entities[0].Start)

	runes := []rune(text)
	for _, e := range entities {
		assert.Equal(t, string(runes[e.Start:e.End]), e.Value)
	}
}

func TestModelAnnotatorPresidioAfterNonASCII(t *testing.T) {
	model, err := NewPresidioModel()
	require.NoError(t, err)
	p := NewPipeline(NewModelAnnotator(model, Presidio))

	text := "Δελτίο: καλέστε 555-123-4567 ή 4111 1111 1111 1112"
	doc, err := p.Process(text)
	require.NoError(t, err)
	assert.Equal(t, []types.Entity{entityAt("PHONENUMBER", text, "555-123-4567")}, doc.Entities(KeepAll))

	text = "Ωμέγα € 4111 1111 1111 1111"
	doc, err = p.Process(text)
	require.NoError(t, err)
	assert.Equal(t, []types.Entity{entityAt("CARD_NUMBER", text, "4111 1111 1111 1111")}, doc.Entities(KeepAll))
}

func TestValidateSpansRuns(t *testing.T) {
	text := "call +1 800 555 1234 ext 567"
	spans := tokenSpans(text, "PHONENUMBER", 1, 7)
	assert.Equal(t, spans, ValidateSpans([]rune(text), spans))

	text = "dial 12 34 today"
	assert.Empty(t, ValidateSpans([]rune(text), tokenSpans(text, "PHONENUMBER", 1, 3)))

	// runs more than one character apart are checked separately
	text = "555-123-4567 / 12"
	phone := tokenSpans(text, "PHONENUMBER", 0, 1)
	spans = append(append([]types.Entity{}, phone...), tokenSpans(text, "PHONENUMBER", 2, 3)...)
	assert.Equal(t, phone, ValidateSpans([]rune(text), spans))

	text = "arddh 12"
	spans = []types.Entity{types.CreateEntity("NAME", text, 0, 5), types.CreateEntity("PERSON", text, 6, 8)}
	assert.Equal(t, spans, ValidateSpans([]rune(text), spans))
}

func TestCheckSpans(t *testing.T) {
	assert.NoError(t, checkSpans(5, []types.Entity{{Start: 0, End: 5}, {Start: 5, End: 5}}))
	assert.Error(t, checkSpans(5, []types.Entity{{Start: 0, End: 6}}))
	assert.Error(t, checkSpans(5, []types.Entity{{Start: -1, End: 2}}))
	assert.Error(t, checkSpans(5, []types.Entity{{Start: 3, End: 2}}))
}

func TestStructuredValidators(t *testing.T) {
	tests := []struct {
		check func(string) bool
		value string
		want  bool
	}{
		{isValidPhone, "123-4567", true},
		{isValidPhone, "(555) 123-4567", true},
		{isValidPhone, "+1 800 555 1234 ext 567", true},
		{isValidPhone, "12345", false},
		{isValidPhone, "12345678901234567890", false},
		{isValidPhone, "ABC-DEF-GHIJ", false},
		{isValidPhone, "555-123-4567 ext", false},

		{isValidCard, "4111 1111 1111 1111", true},
		{isValidCard, "5500-0000-0000-0004", true},
		{isValidCard, "4111 1111 1111 1112", false},
		{isValidCard, "1234 5678 901", false},
		{isValidCard, "4111  1111 1111 1111", false},
		{isValidCard, "abcd-efgh-ijkl-mnop", false},

		{isValidSSN, "123-45-6789", true},
		{isValidSSN, "123 45 6789", true},
		{isValidSSN, "123456789", true},
		{isValidSSN, "123-45 6789", false},
		{isValidSSN, "000-12-3456", false},
		{isValidSSN, "923-45-6789", false},
		{isValidSSN, "123-00-6789", false},
		{isValidSSN, "12a-45-6789", false},

		{isValidEmail, "jane.doe@example.com", true},
		{isValidEmail, "user@localhost", true},
		{isValidEmail, "jane.example.com", false},
		{isValidEmail, "jane@example", false},
		{isValidEmail, "jane@example..com", false},
		{isValidEmail, "@example.com", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.check(tt.value), tt.value)
	}
}

func TestCreditScoreNeedsContext(t *testing.T) {
	tests := []struct {
		text  string
		score string
		want  bool
	}{
		{"Émile's credit score is 750 and rising.", "750", true},
		{"credit score: 712", "712", true},
		{"He scored 750 points yesterday.", "750", false},
		{"credit score of 1000", "1000", false},
		{"credit score of 200", "200", false},
	}

	for _, tt := range tests {
		span := entityAt("CREDIT_SCORE", tt.text, tt.score)
		got := ValidateSpans([]rune(tt.text), []types.Entity{span})
		assert.Equal(t, tt.want, len(got) == 1, tt.text)
	}
}

func TestLuhn(t *testing.T) {
	assert.True(t, luhnValid("4111111111111111"))
	assert.True(t, luhnValid("79927398713"))
	assert.False(t, luhnValid("79927398710"))
}
