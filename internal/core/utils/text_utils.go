package utils

import (
	"regexp"
	"unicode/utf8"
)

var charRegex = regexp.MustCompile(`\S+`)

const DefaultSentenceLength = 100

// SplitTextCustomLength groups every length whitespace-separated tokens into
// one chunk. startOffsets are character (rune) offsets of each chunk in text.
func SplitTextCustomLength(text string, length int) (chunks []string, startOffsets []int) {
	// we cannot naively split on whitespaces because we need to preserve the token offsets
	idxs := charRegex.FindAllStringIndex(text, -1)

	runeOffset, byteOffset := 0, 0
	for tokenIndex := 0; tokenIndex < len(idxs); tokenIndex += length {
		end := min(tokenIndex+length, len(idxs))
		startByte := idxs[tokenIndex][0]
		endByte := idxs[end-1][1]

		runeOffset += utf8.RuneCountInString(text[byteOffset:startByte])
		byteOffset = startByte

		chunks = append(chunks, text[startByte:endByte])
		startOffsets = append(startOffsets, runeOffset)
	}
	return
}

func SplitText(text string) (chunks []string, startOffsets []int) {
	return SplitTextCustomLength(text, DefaultSentenceLength)
}
