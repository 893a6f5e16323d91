package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the enclosing Source Map v3 JSON record. Field order here
// matches the wire order ToJSON must produce: version, file, names,
// sources, mappings, sourcesContent, sourceRoot. A SourcesContent entry
// is nil when no content is stored for that source, distinct from an
// empty string.
type Envelope struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	Names          []string  `json:"names"`
	Sources        []string  `json:"sources"`
	Mappings       string    `json:"mappings"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
}

// Position is the result of a query against a Service: the resolved
// generated and original coordinates, plus whatever name/source
// attribution the underlying Segment carried. Name is nil when the
// Segment had no associated name.
type Position struct {
	Name            *string
	Source          string
	SourceRoot      string
	SourceIndex     int
	OriginalLine    int
	OriginalColumn  int
	GeneratedLine   int
	GeneratedColumn int
}

// SnippetOptions controls how much surrounding source PositionWithSnippet
// includes around the resolved line.
type SnippetOptions struct {
	LinesBefore int
	LinesAfter  int
}

// DefaultSnippetOptions matches the windows used by editor/devtools-style
// consumers of this package: three lines of leading context, four of
// trailing.
func DefaultSnippetOptions() SnippetOptions {
	return SnippetOptions{LinesBefore: 3, LinesAfter: 4}
}

// PositionWithCode is a Position plus the surrounding source text.
type PositionWithCode struct {
	Position
	Code      []string
	StartLine int
	EndLine   int
}

// Service owns the envelope arrays (names, sources, sourcesContent) and a
// MappingEngine instance, and answers position queries against their
// join. It is not safe for concurrent mutation: concurrent Concat calls
// race on these arrays. Concurrent read-only queries against an instance
// that is not being mutated are safe.
type Service struct {
	file           string
	sourceRoot     string
	names          []string
	sources        []string
	sourcesContent []*string
	engine         *MappingEngine
}

// New constructs a Service from an already-parsed Envelope.
func New(env Envelope) (*Service, error) {
	engine, err := DecodeMappingEngine(env.Mappings, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Service{
		file:           env.File,
		sourceRoot:     env.SourceRoot,
		names:          append([]string(nil), env.Names...),
		sources:        append([]string(nil), env.Sources...),
		sourcesContent: append([]*string(nil), env.SourcesContent...),
		engine:         engine,
	}, nil
}

// NewFromJSON constructs a Service from a raw v3 envelope JSON buffer.
// "sources", "mappings" and "names" must be present as keys (even if
// empty); their absence fails with a Error of kind
// ErrMissingRequiredKey. "names", "sources" and "sourcesContent" (when
// present) must be JSON arrays; a present-but-wrong-shaped value (an
// object, a string, ...) fails with ErrNotAnArray rather than the raw
// encoding/json type error. A present "version" other than 3 is
// accepted rather than rejected, a deliberate divergence recorded in
// DESIGN.md: this package always treats the decoded map as v3 and
// always writes version 3 back out, and the closed error taxonomy has
// no kind for a version mismatch to report as.
func NewFromJSON(data []byte) (*Service, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, key := range [...]string{"sources", "mappings", "names"} {
		if _, ok := raw[key]; !ok {
			return nil, newMissingRequiredKeyError(key)
		}
	}
	for _, key := range [...]string{"names", "sources", "sourcesContent"} {
		if msg, ok := raw[key]; ok && !isJSONArray(msg) {
			return nil, newNotAnArrayError(key)
		}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return New(env)
}

// isJSONArray reports whether msg's first non-whitespace byte opens a
// JSON array. "null" is accepted too: it unmarshals to a nil slice,
// which is a valid empty array for this package's purposes.
func isJSONArray(msg json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(msg))
	return trimmed == "null" || strings.HasPrefix(trimmed, "[")
}

// File returns the envelope's "file" field.
func (s *Service) File() string { return s.file }

// Names returns the envelope's names array.
func (s *Service) Names() []string { return s.names }

// Sources returns the envelope's sources array.
func (s *Service) Sources() []string { return s.sources }

// ValidateSourcesContentArity reports whether a non-empty sourcesContent
// has exactly one entry per entry in sources. A Service that never set
// sourcesContent (length 0) always passes. Callers that care about
// strict source/content alignment — e.g. before a Concat whose operands
// come from untrusted input — should call this explicitly; Concat
// itself does not enforce it.
func (s *Service) ValidateSourcesContentArity() error {
	if len(s.sourcesContent) == 0 {
		return nil
	}
	if len(s.sourcesContent) != len(s.sources) {
		return newSourcesContentArityError(len(s.sourcesContent), len(s.sources))
	}
	return nil
}

// positionFromSegment joins a decoded Segment against the envelope's
// names/sources arrays to build a caller-facing Position.
func (s *Service) positionFromSegment(seg Segment) Position {
	pos := Position{
		GeneratedLine:   seg.GeneratedLine,
		GeneratedColumn: seg.GeneratedColumn,
		SourceRoot:      s.sourceRoot,
	}
	if seg.HasSource {
		pos.SourceIndex = seg.SourceIndex
		pos.OriginalLine = seg.Line
		pos.OriginalColumn = seg.Column
		if seg.SourceIndex >= 0 && seg.SourceIndex < len(s.sources) {
			pos.Source = s.sources[seg.SourceIndex]
		}
	}
	if seg.HasName && seg.NameIndex >= 0 && seg.NameIndex < len(s.names) {
		name := s.names[seg.NameIndex]
		pos.Name = &name
	}
	return pos
}

// PositionByGenerated resolves a generated (line, column) to a Position.
// Lines and columns are 1-based.
func (s *Service) PositionByGenerated(line, column int, bias Bias) (Position, bool) {
	seg, ok := s.engine.GetByGenerated(line, column, bias)
	if !ok {
		return Position{}, false
	}
	return s.positionFromSegment(seg), true
}

// PositionByOriginal resolves an original (line, column) within source
// to a Position. source is either an int index into Sources(), or a
// string matched as a substring against Sources() (first match wins);
// any other type fails with ErrSourceNotFound. Query failure ("not
// found", as opposed to "source argument invalid") returns (Position{},
// false, nil), matching §7's "query operations never throw for not
// found".
func (s *Service) PositionByOriginal(line, column int, source any, bias Bias) (Position, bool, error) {
	idx, err := s.resolveSourceIndex(source)
	if err != nil {
		return Position{}, false, err
	}
	seg, ok := s.engine.GetByOriginal(idx, line, column, bias)
	if !ok {
		return Position{}, false, nil
	}
	return s.positionFromSegment(seg), true, nil
}

func (s *Service) resolveSourceIndex(source any) (int, error) {
	switch v := source.(type) {
	case int:
		if v < 0 || v >= len(s.sources) {
			return 0, newSourceNotFoundError(indexQuery(v))
		}
		return v, nil
	case string:
		for i, src := range s.sources {
			if strings.Contains(src, v) {
				return i, nil
			}
		}
		return 0, newSourceNotFoundError(v)
	default:
		return 0, newSourceNotFoundError(indexQuery(-1))
	}
}

func indexQuery(v int) string {
	return "#" + strconv.Itoa(v)
}

// PositionByByteOffset resolves a byte offset into the generated file's
// text to a Position, by first converting the offset to a (line,
// column) pair via idx. Callers that only have a byte offset — a
// stack-trace frame, a runtime error location — use this instead of
// PositionByGenerated. utf16 selects the column convention: true
// counts columns in UTF-16 code units (what most browser/devtools
// callers report), false counts raw bytes.
func (s *Service) PositionByByteOffset(idx *LineIndex, offset int, utf16 bool, bias Bias) (Position, bool) {
	var line, column int
	if utf16 {
		line, column = idx.ByteOffsetToLineColumnUTF16(offset)
	} else {
		line, column = idx.ByteOffsetToLineColumn(offset)
	}
	return s.PositionByGenerated(line, column, bias)
}

// PositionWithSnippet resolves a generated position and, if the
// resolved source has stored content, slices out the surrounding lines.
// It returns false if the position doesn't resolve, or if no content is
// stored for the resolved source (a nil SourcesContent entry).
func (s *Service) PositionWithSnippet(line, column int, bias Bias, opts SnippetOptions) (PositionWithCode, bool) {
	pos, ok := s.PositionByGenerated(line, column, bias)
	if !ok {
		return PositionWithCode{}, false
	}
	return s.snippetFor(pos, opts)
}

// PositionWithContent is an alias for PositionWithSnippet using the
// default snippet window, matching the library surface's
// Service.positionWithContent.
func (s *Service) PositionWithContent(line, column int, bias Bias) (PositionWithCode, bool) {
	return s.PositionWithSnippet(line, column, bias, DefaultSnippetOptions())
}

func (s *Service) snippetFor(pos Position, opts SnippetOptions) (PositionWithCode, bool) {
	if pos.SourceIndex < 0 || pos.SourceIndex >= len(s.sourcesContent) {
		return PositionWithCode{}, false
	}
	content := s.sourcesContent[pos.SourceIndex]
	if content == nil {
		return PositionWithCode{}, false
	}

	lines := strings.Split(*content, "\n")
	start := pos.OriginalLine - opts.LinesBefore
	if start < 0 {
		start = 0
	}
	end := pos.OriginalLine + opts.LinesAfter
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}

	return PositionWithCode{
		Position:  pos,
		Code:      lines[start:end],
		StartLine: start,
		EndLine:   end,
	}, true
}

// Concat appends each of others' names, sources, sourcesContent and
// decoded frames onto this Service's arrays, in call order: concat(a, b)
// is not equivalent to concat(b, a). Index offsets for names/sources and
// the generated-line axis are applied per §4.2's concatenation path.
// sourcesContent is padded with nil entries only as needed to keep it
// aligned with sources by index — nil rather than "", so a padded slot
// stays distinguishable from a source whose content is genuinely an
// empty string (see DESIGN.md for why this diverges from the spec's
// literal "padded with empty strings" wording). Concat is staged and
// commits only on success, so a failing Concat leaves the receiver
// unchanged. Calling with no arguments fails with ErrEmptyConcat.
func (s *Service) Concat(others ...*Service) error {
	if len(others) == 0 {
		return newEmptyConcatError()
	}

	names := append([]string(nil), s.names...)
	sources := append([]string(nil), s.sources...)
	content := append([]*string(nil), s.sourcesContent...)
	frames := append(Map(nil), s.engine.Frames()...)

	for _, other := range others {
		namesBase := len(names)
		sourcesBase := len(sources)
		linesBase := len(frames)

		names = append(names, other.names...)
		sources = append(sources, other.sources...)

		for len(content) < sourcesBase {
			content = append(content, nil)
		}
		content = append(content, other.sourcesContent...)

		engine, err := DecodeMappingEngine(other.engine.Encode(), namesBase, sourcesBase, linesBase)
		if err != nil {
			return err
		}
		frames = append(frames, engine.Frames()...)
	}

	s.names = names
	s.sources = sources
	s.sourcesContent = content
	s.engine = NewMappingEngine(frames)
	return nil
}

// ConcatNewMap behaves like Concat but returns a fresh Service rather
// than mutating the receiver.
func (s *Service) ConcatNewMap(others ...*Service) (*Service, error) {
	if len(others) == 0 {
		return nil, newEmptyConcatError()
	}
	clone := s.clone()
	if err := clone.Concat(others...); err != nil {
		return nil, err
	}
	return clone, nil
}

func (s *Service) clone() *Service {
	return &Service{
		file:           s.file,
		sourceRoot:     s.sourceRoot,
		names:          append([]string(nil), s.names...),
		sources:        append([]string(nil), s.sources...),
		sourcesContent: append([]*string(nil), s.sourcesContent...),
		engine:         NewMappingEngine(append(Map(nil), s.engine.Frames()...)),
	}
}

// toEnvelope builds the JSON-serializable Envelope for the current
// state, re-encoding frames to the mappings wire format.
func (s *Service) toEnvelope() Envelope {
	return Envelope{
		Version:        3,
		File:           s.file,
		Names:          s.names,
		Sources:        s.sources,
		Mappings:       s.engine.Encode(),
		SourcesContent: s.sourcesContent,
		SourceRoot:     s.sourceRoot,
	}
}

// ToJSON serializes the Service back to the v3 envelope wire format,
// with keys in the stable order version, file, names, sources, mappings,
// sourcesContent, sourceRoot. Unknown keys are never emitted, matching
// what NewFromJSON ignores on read.
func (s *Service) ToJSON() ([]byte, error) {
	return json.Marshal(s.toEnvelope())
}

// ToDataURI returns the current envelope as a data: URI, for inline
// embedding as a sourceMappingURL comment.
func (s *Service) ToDataURI() (string, error) {
	data, err := s.ToJSON()
	if err != nil {
		return "", err
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ToComment returns a "//# sourceMappingURL=" comment referencing either
// an inline data URI (inline=true) or the envelope's File field as an
// external ".map" sibling.
func (s *Service) ToComment(inline bool) (string, error) {
	if inline {
		uri, err := s.ToDataURI()
		if err != nil {
			return "", err
		}
		return "//# sourceMappingURL=" + uri, nil
	}
	return "//# sourceMappingURL=" + s.file + ".map", nil
}
