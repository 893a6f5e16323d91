package sourcemap

import (
	"sort"
	"unicode/utf8"
)

// LineIndex converts byte offsets within a generated file's text into
// line/column pairs and back. It exists because callers that only have
// a byte offset into the generated output (a stack-trace frame, an
// editor cursor position reported in bytes) need a 1-based (line,
// column) pair before they can call PositionByGenerated; the codec
// itself never deals in byte offsets directly.
type LineIndex struct {
	text       string
	lineStarts []int
}

// NewLineIndex scans text once, recording the byte offset each line
// starts at. CR, LF and CRLF are all recognized as line breaks.
func NewLineIndex(text string) *LineIndex {
	idx := &LineIndex{
		text:       text,
		lineStarts: []int{0},
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			if i+1 < len(text) {
				idx.lineStarts = append(idx.lineStarts, i+1)
			}
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				if i+2 < len(text) {
					idx.lineStarts = append(idx.lineStarts, i+2)
				}
				i++
			} else if i+1 < len(text) {
				idx.lineStarts = append(idx.lineStarts, i+1)
			}
		}
	}

	return idx
}

// LineCount returns the number of lines text was split into.
func (idx *LineIndex) LineCount() int {
	return len(idx.lineStarts)
}

// lineForOffset returns the 0-indexed line containing offset, clamped
// to the text's bounds.
func (idx *LineIndex) lineForOffset(offset int) int {
	if offset < 0 {
		offset = 0
	}
	if offset > len(idx.text) {
		offset = len(idx.text)
	}
	line := sort.Search(len(idx.lineStarts), func(i int) bool {
		return idx.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return line
}

// ByteOffsetToLineColumn converts a byte offset to a 1-based
// (line, column) pair, with column counted in bytes. Out-of-range
// offsets clamp to the nearest valid position rather than erroring,
// since a query one byte past EOF is a common off-by-one a caller
// should still get an answer for.
func (idx *LineIndex) ByteOffsetToLineColumn(offset int) (line, column int) {
	l := idx.lineForOffset(offset)
	clamped := offset
	if clamped < 0 {
		clamped = 0
	}
	if clamped > len(idx.text) {
		clamped = len(idx.text)
	}
	return l + 1, clamped - idx.lineStarts[l] + 1
}

// ByteOffsetToLineColumnUTF16 is like ByteOffsetToLineColumn but counts
// the column in UTF-16 code units, matching the column convention the
// rest of this package (and the v3 format itself) uses on the wire.
func (idx *LineIndex) ByteOffsetToLineColumnUTF16(offset int) (line, column int) {
	l := idx.lineForOffset(offset)
	clamped := offset
	if clamped < 0 {
		clamped = 0
	}
	if clamped > len(idx.text) {
		clamped = len(idx.text)
	}
	lineStart := idx.lineStarts[l]
	return l + 1, utf16ColumnOf(idx.text[lineStart:], clamped-lineStart) + 1
}

// utf16ColumnOf counts the UTF-16 code units spanned by the first
// byteOffset bytes of s. Invalid UTF-8 bytes count as one unit each.
func utf16ColumnOf(s string, byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset > len(s) {
		byteOffset = len(s)
	}

	units := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			units++
			i++
			continue
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		i += size
	}
	return units
}

// LineColumnToByteOffset converts a 1-based (line, column) pair back
// to a byte offset. A line before the first returns offset 0; a line
// past the last is treated as the last line; the resulting offset is
// clamped to the line's start and to the end of the text.
func (idx *LineIndex) LineColumnToByteOffset(line, column int) int {
	l := line - 1
	if l < 0 {
		return 0
	}
	if l >= len(idx.lineStarts) {
		l = len(idx.lineStarts) - 1
	}

	offset := idx.lineStarts[l] + (column - 1)
	if offset < idx.lineStarts[l] {
		return idx.lineStarts[l]
	}
	if offset > len(idx.text) {
		return len(idx.text)
	}
	return offset
}
