package buffer

import (
	"strings"

	"github.com/riverfjs/slackify-go/internal/util"
)

// ChunkBuffer accumulates pieces of one chunk joined by a separator and
// tracks the joined length in UTF-16 code units.
type ChunkBuffer struct {
	parts     []string
	separator string
	sepLen    int
	length    int
}

// New creates a new ChunkBuffer that joins pieces with sep.
func New(sep string) *ChunkBuffer {
	return &ChunkBuffer{
		parts:     make([]string, 0),
		separator: sep,
		sepLen:    util.UTF16Len(sep),
	}
}

// Len returns the current joined length.
func (cb *ChunkBuffer) Len() int {
	return cb.length
}

// Empty reports whether nothing has been written since the last reset.
func (cb *ChunkBuffer) Empty() bool {
	return len(cb.parts) == 0
}

// LenWith returns the joined length the buffer would have after writing piece.
func (cb *ChunkBuffer) LenWith(piece string) int {
	if cb.Empty() {
		return util.UTF16Len(piece)
	}
	return cb.length + cb.sepLen + util.UTF16Len(piece)
}

// Write appends a piece to the buffer.
func (cb *ChunkBuffer) Write(piece string) {
	cb.length = cb.LenWith(piece)
	cb.parts = append(cb.parts, piece)
}

// String returns the accumulated pieces joined by the separator.
func (cb *ChunkBuffer) String() string {
	return strings.Join(cb.parts, cb.separator)
}

// Flush returns the accumulated text and resets the buffer.
func (cb *ChunkBuffer) Flush() string {
	s := cb.String()
	cb.Reset()
	return s
}

// Reset clears the buffer.
func (cb *ChunkBuffer) Reset() {
	cb.parts = cb.parts[:0]
	cb.length = 0
}
