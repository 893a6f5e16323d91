package sourcemap

// Bias selects the tie-break policy for a column lookup that does not
// land on an exact segment boundary.
type Bias uint8

const (
	// BiasExact returns only a segment whose column matches the query
	// exactly; otherwise none.
	BiasExact Bias = iota
	// BiasFloor returns the greatest segment with column <= the query.
	BiasFloor
	// BiasCeiling returns the least segment with column >= the query.
	BiasCeiling
)

func (b Bias) String() string {
	switch b {
	case BiasExact:
		return "exact"
	case BiasFloor:
		return "floor"
	case BiasCeiling:
		return "ceiling"
	default:
		return "unknown"
	}
}

// Segment is one positional mapping record: a correspondence between a
// generated position and (optionally) an original one. Coordinates are
// 1-based, matching the in-memory convention this package uses
// throughout; the wire format is 0-based and the codec converts at the
// boundary.
//
// HasSource is false only for a length-1 wire segment (a generated
// column with no source attribution). HasName is false whenever the wire
// segment had length 4 rather than 5 — the distinction between "no name"
// and "name index 0" is preserved explicitly rather than overloading -1.
type Segment struct {
	GeneratedLine   int
	GeneratedColumn int

	HasSource   bool
	SourceIndex int
	Line        int
	Column      int

	HasName   bool
	NameIndex int
}

// Frame is the ordered sequence of Segments sharing one generated line.
// A nil or empty Frame represents a generated line with no mappings.
// Within a non-empty Frame, segments are sorted by GeneratedColumn
// strictly ascending.
type Frame []Segment

// Map is a dense, ordered sequence of Frames indexed by
// generatedLine-1, so lookups by generated line are O(1). Gaps between
// mapped lines are represented by empty Frames.
type Map []Frame

// offset is the transient accumulator threaded through the decode and
// encode loops. Every field but generatedLine/generatedColumn persists
// across segment and line boundaries per the delta rules in §4.2; at the
// top of each line generatedColumn resets to 0 and generatedLine is set
// to that line's number.
type offset struct {
	line            int
	column          int
	nameIndex       int
	sourceIndex     int
	generatedLine   int
	generatedColumn int
}

// validateSegment checks the invariants required of a programmatically
// constructed Segment (decode paths perform their own, delta-specific
// validation instead). Every numeric field must be a finite, in-range
// integer: NameIndex and SourceIndex (when present) non-negative, and
// GeneratedLine at least 1.
func validateSegment(s Segment) error {
	if s.GeneratedLine < 1 {
		return newInvalidSegmentFieldError("generatedLine")
	}
	if s.GeneratedColumn < 0 {
		return newInvalidSegmentFieldError("generatedColumn")
	}
	if s.HasSource {
		if s.SourceIndex < 0 {
			return newInvalidSegmentFieldError("sourceIndex")
		}
		if s.Line < 1 {
			return newInvalidSegmentFieldError("line")
		}
		if s.Column < 0 {
			return newInvalidSegmentFieldError("column")
		}
	}
	if s.HasName && s.NameIndex < 0 {
		return newInvalidSegmentFieldError("nameIndex")
	}
	return nil
}

// NewSegment constructs and validates a Segment for programmatic use
// (as opposed to a decode path, which validates deltas as it goes).
func NewSegment(s Segment) (Segment, error) {
	if err := validateSegment(s); err != nil {
		return Segment{}, err
	}
	return s, nil
}
