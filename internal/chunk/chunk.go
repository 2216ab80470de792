// Package chunk splits normalised input text into pieces short enough for
// the TTS model's context window, preferring sentence and word boundaries
// over mid-word cuts.
package chunk

import (
	"regexp"
	"strings"
)

// MaxLength is the hard ceiling on a single chunk's length in runes.
const MaxLength = 200

var sentenceSplit = regexp.MustCompile(`([.!?])\s+`)

// Normalize collapses runs of whitespace to a single space and trims the
// ends. Chunking always operates on the normalised form, and the caller's
// round-trip guarantee (concatenation of chunks, rejoined with single
// spaces, equals the normalised input) is defined against this output.
func Normalize(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// Split normalises text and divides it into chunks of at most MaxLength
// runes, splitting first on sentence terminators, then on word boundaries
// for any sentence that alone exceeds the limit, then on fixed-size
// slices for any word that alone exceeds the limit. An empty normalised
// input produces no chunks.
func Split(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var chunks []string
	for _, sentence := range splitSentences(normalized) {
		chunks = append(chunks, splitSentence(sentence)...)
	}
	return chunks
}

// splitSentences divides text on a terminator ([.!?]) followed by
// whitespace, keeping the terminator attached to the sentence it ends.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceSplit.FindAllStringSubmatchIndex(text, -1) {
		end := loc[3] // end of the captured terminator, before the whitespace
		sentences = append(sentences, text[last:end])
		last = loc[1] // end of the full match, after the whitespace
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	return sentences
}

// splitSentence returns sentence unchanged as a single chunk if it fits,
// else splits it on word boundaries, recursing into splitWord for any
// word that alone still exceeds MaxLength.
func splitSentence(sentence string) []string {
	if len([]rune(sentence)) <= MaxLength {
		return []string{sentence}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(sentence) {
		wordLen := len([]rune(word))
		if wordLen > MaxLength {
			flush()
			chunks = append(chunks, splitWord(word)...)
			continue
		}

		sep := 0
		if currentLen > 0 {
			sep = 1
		}
		if currentLen+sep+wordLen > MaxLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	flush()

	return chunks
}

// splitWord divides a single word longer than MaxLength into fixed-size
// rune slices.
func splitWord(word string) []string {
	runes := []rune(word)
	var chunks []string
	for len(runes) > 0 {
		n := MaxLength
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
