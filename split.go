package slackify

import (
	"strings"

	"github.com/riverfjs/slackify-go/internal/buffer"
)

const (
	paragraphSep = "\n\n"
	sentenceSep  = ". "
)

// SplitText splits text into chunks not exceeding maxLength UTF-16 code units.
//
// Paragraphs ("\n\n") are packed greedily into chunks. A paragraph longer
// than maxLength is packed sentence by sentence (". "), and every chunk
// flushed in the middle of a paragraph gets its period back. A single
// sentence longer than maxLength is emitted unsplit. The result is never
// empty and is fully determined by the input.
func SplitText(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}
	if CountText(text) <= maxLength {
		return []string{text}
	}

	chunks := make([]string, 0)
	current := buffer.New(paragraphSep)

	for _, paragraph := range strings.Split(text, paragraphSep) {
		if current.LenWith(paragraph) <= maxLength {
			current.Write(paragraph)
			continue
		}
		chunks = appendChunk(chunks, current.Flush())

		if CountText(paragraph) <= maxLength {
			current.Write(paragraph)
			continue
		}
		chunks = splitSentences(chunks, current, paragraph, maxLength)
	}

	chunks = appendChunk(chunks, current.Flush())
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// splitSentences packs the sentences of an over-long paragraph. Completed
// chunks are appended to chunks; the unfinished tail is left in current so
// following paragraphs can still join it.
func splitSentences(chunks []string, current *buffer.ChunkBuffer, paragraph string, maxLength int) []string {
	sentences := buffer.New(sentenceSep)
	for _, sentence := range strings.Split(paragraph, sentenceSep) {
		// one unit is reserved for the period restored on flush
		if sentences.Empty() || sentences.LenWith(sentence)+1 <= maxLength {
			sentences.Write(sentence)
			continue
		}
		chunks = appendChunk(chunks, sentences.Flush()+".")
		sentences.Write(sentence)
	}
	if !sentences.Empty() {
		current.Write(sentences.Flush())
	}
	return chunks
}

func appendChunk(chunks []string, chunk string) []string {
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}
