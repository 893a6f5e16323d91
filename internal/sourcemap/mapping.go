package sourcemap

import (
	"sort"
	"strings"
)

// validateMappingsCharset checks that blob contains only bytes a mappings
// blob may legally carry: the base64 VLQ alphabet plus its two
// separators, ',' and ';'.
func validateMappingsCharset(blob string) error {
	for i := 0; i < len(blob); i++ {
		b := blob[i]
		if b >= 128 || (base64Values[b] < 0 && b != ',' && b != ';') {
			return newInvalidMappingsCharsetError(b, i)
		}
	}
	return nil
}

// MappingEngine owns the decoded Frame array for one source map and
// delegates raw byte-level work to the VLQ codec. It answers generated-
// and original-axis position queries and round-trips back to the v3
// wire encoding.
type MappingEngine struct {
	frames Map
}

// NewMappingEngine wraps an already-built Frame array (frames emitted by
// Decode, or constructed programmatically via NewSegment) as a
// MappingEngine. Corresponds to the library surface's
// MappingEngine.fromFrames.
func NewMappingEngine(frames Map) *MappingEngine {
	return &MappingEngine{frames: frames}
}

// Frames returns the underlying Frame array.
func (e *MappingEngine) Frames() Map {
	return e.frames
}

// Len reports the number of generated lines covered by the engine
// (including empty ones).
func (e *MappingEngine) Len() int {
	return len(e.frames)
}

// DecodeMappingEngine decodes a v3 mappings blob into a MappingEngine.
// namesBase and sourcesBase seed the persistent nameIndex/sourceIndex
// accumulator (nonzero when this decode is appending onto an existing
// map via concat); linesBase is the number of generated lines already
// present in that map, so the first decoded line lands at generated line
// linesBase+1. A standalone decode passes namesBase=sourcesBase=
// linesBase=0. Corresponds to the library surface's
// MappingEngine.fromString.
//
// Decode is atomic: any error leaves no partial engine behind.
func DecodeMappingEngine(blob string, namesBase, sourcesBase, linesBase int) (*MappingEngine, error) {
	if err := validateMappingsCharset(blob); err != nil {
		return nil, err
	}

	off := offset{nameIndex: namesBase, sourceIndex: sourcesBase}

	var lines []string
	if blob == "" {
		lines = nil
	} else {
		lines = strings.Split(blob, ";")
	}

	frames := make(Map, 0, len(lines))

	for i, line := range lines {
		if line == "" {
			frames = append(frames, nil)
			continue
		}

		off.generatedColumn = 0
		off.generatedLine = linesBase + i + 1

		segStrs := strings.Split(line, ",")
		frame := make(Frame, 0, len(segStrs))

		for segIdx, segStr := range segStrs {
			values, err := DecodeVLQArray(segStr)
			if err != nil {
				return nil, err
			}

			switch len(values) {
			case 1, 4, 5:
			default:
				return nil, newInvalidSegmentLenError(i, segIdx, len(values))
			}

			off.generatedColumn += values[0]
			if off.generatedColumn < 0 {
				return nil, newNegativeCoordinateError("generatedColumn", i, segIdx)
			}

			seg := Segment{
				GeneratedLine:   off.generatedLine,
				GeneratedColumn: off.generatedColumn + 1,
			}

			if len(values) >= 4 {
				off.sourceIndex += values[1]
				off.line += values[2]
				off.column += values[3]
				if off.sourceIndex < 0 {
					return nil, newNegativeCoordinateError("sourceIndex", i, segIdx)
				}
				if off.line < 0 {
					return nil, newNegativeCoordinateError("line", i, segIdx)
				}
				if off.column < 0 {
					return nil, newNegativeCoordinateError("column", i, segIdx)
				}
				seg.HasSource = true
				seg.SourceIndex = off.sourceIndex
				seg.Line = off.line + 1
				seg.Column = off.column + 1
			}

			if len(values) == 5 {
				off.nameIndex += values[4]
				if off.nameIndex < 0 {
					return nil, newNegativeCoordinateError("nameIndex", i, segIdx)
				}
				seg.HasName = true
				seg.NameIndex = off.nameIndex
			}

			frame = append(frame, seg)
		}

		frames = append(frames, frame)
	}

	return &MappingEngine{frames: frames}, nil
}

// Encode re-serializes the engine's frames to the v3 wire format. The
// encoder mirrors Decode exactly: every persistent accumulator field
// (sourceIndex, line, column, nameIndex) threads across line and segment
// boundaries unreset, and generatedColumn resets to 0 at the top of each
// line. Length-1 segments (no source attribution) are preserved verbatim
// rather than upgraded to length-4.
func (e *MappingEngine) Encode() string {
	var buf strings.Builder
	var off offset

	for i, frame := range e.frames {
		if i > 0 {
			buf.WriteByte(';')
		}
		if len(frame) == 0 {
			continue
		}

		off.generatedColumn = 0
		for segIdx, seg := range frame {
			if segIdx > 0 {
				buf.WriteByte(',')
			}

			genCol0 := seg.GeneratedColumn - 1
			buf.WriteString(EncodeVLQ(genCol0 - off.generatedColumn))
			off.generatedColumn = genCol0

			if !seg.HasSource {
				continue
			}

			srcIdx := seg.SourceIndex
			line0 := seg.Line - 1
			col0 := seg.Column - 1

			buf.WriteString(EncodeVLQ(srcIdx - off.sourceIndex))
			off.sourceIndex = srcIdx
			buf.WriteString(EncodeVLQ(line0 - off.line))
			off.line = line0
			buf.WriteString(EncodeVLQ(col0 - off.column))
			off.column = col0

			if !seg.HasName {
				continue
			}

			buf.WriteString(EncodeVLQ(seg.NameIndex - off.nameIndex))
			off.nameIndex = seg.NameIndex
		}
	}

	return buf.String()
}

// GetByGenerated resolves a generated (line, column) to its Segment, if
// any. Lines are 1-based; an out-of-range or empty line returns
// (Segment{}, false). On an exact column match, every Bias returns that
// segment. On a miss, BiasFloor returns the closest segment with a
// smaller column, BiasCeiling the closest with a larger one, and
// BiasExact returns false.
func (e *MappingEngine) GetByGenerated(line, column int, bias Bias) (Segment, bool) {
	if line < 1 || line > len(e.frames) {
		return Segment{}, false
	}
	frame := e.frames[line-1]
	if len(frame) == 0 {
		return Segment{}, false
	}
	return searchFrame(frame, column, bias)
}

// searchFrame binary-searches a column-ascending frame for column,
// applying bias on a miss. It returns the same candidate an iterative
// binary search would converge on when tracking "closest so far":
// BiasFloor keeps the latest (rightmost) tied candidate, BiasCeiling the
// earliest (leftmost).
func searchFrame(frame Frame, column int, bias Bias) (Segment, bool) {
	n := len(frame)
	idx := sort.Search(n, func(i int) bool { return frame[i].GeneratedColumn >= column })

	if idx < n && frame[idx].GeneratedColumn == column {
		return frame[idx], true
	}

	switch bias {
	case BiasFloor:
		if idx == 0 {
			return Segment{}, false
		}
		return frame[idx-1], true
	case BiasCeiling:
		if idx == n {
			return Segment{}, false
		}
		return frame[idx], true
	default:
		return Segment{}, false
	}
}

// GetByOriginal resolves an original (sourceIndex, line, column) to its
// Segment. The Map is indexed for the generated axis, not this one, so
// this is a linear scan across all frames in generated order (per §4.3,
// an implementer may add a secondary index; correctness, not
// performance, is specified). On an exact match, every Bias returns that
// segment immediately. On a miss, BiasFloor keeps the greatest candidate
// with (line, column) <= the target, updating on ties so the latest
// scan-order duplicate wins; BiasCeiling keeps the least candidate with
// (line, column) >= the target, ignoring ties so the earliest duplicate
// wins — mirroring GetByGenerated's tie-break determinism.
func (e *MappingEngine) GetByOriginal(sourceIndex, line, column int, bias Bias) (Segment, bool) {
	var best Segment
	found := false

	for _, frame := range e.frames {
		for _, seg := range frame {
			if !seg.HasSource || seg.SourceIndex != sourceIndex {
				continue
			}
			if seg.Line == line && seg.Column == column {
				return seg, true
			}
			if bias == BiasExact {
				continue
			}

			switch bias {
			case BiasFloor:
				if lessOriginal(seg.Line, seg.Column, line, column) {
					if !found || !lessOriginal(seg.Line, seg.Column, best.Line, best.Column) {
						best, found = seg, true
					}
				}
			case BiasCeiling:
				if lessOriginal(line, column, seg.Line, seg.Column) {
					if !found || lessOriginal(seg.Line, seg.Column, best.Line, best.Column) {
						best, found = seg, true
					}
				}
			}
		}
	}

	if bias == BiasExact {
		return Segment{}, false
	}
	return best, found
}

func lessOriginal(l1, c1, l2, c2 int) bool {
	if l1 != l2 {
		return l1 < l2
	}
	return c1 < c2
}
