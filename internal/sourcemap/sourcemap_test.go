package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Envelope Construction Tests
// ============================================================================

func TestNewFromEnvelope(t *testing.T) {
	env := Envelope{
		Version:  3,
		File:     "out.js",
		Names:    []string{"x"},
		Sources:  []string{"in.js"},
		Mappings: "AAAA",
	}
	svc, err := New(env)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if svc.File() != "out.js" {
		t.Errorf("File() = %q, want %q", svc.File(), "out.js")
	}
	if len(svc.Sources()) != 1 || svc.Sources()[0] != "in.js" {
		t.Errorf("Sources() = %v, want [in.js]", svc.Sources())
	}
}

func TestNewFromEnvelopeInvalidMappings(t *testing.T) {
	env := Envelope{Names: []string{}, Sources: []string{}, Mappings: "!!!"}
	_, err := New(env)
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.(*Error).Kind != ErrInvalidMappingsCharset {
		t.Errorf("Kind = %v, want ErrInvalidMappingsCharset", err.(*Error).Kind)
	}
}

func TestNewFromJSON(t *testing.T) {
	data := []byte(`{
		"version": 3,
		"file": "out.js",
		"names": ["x"],
		"sources": ["in.js"],
		"mappings": "AAAA,KAEA"
	}`)
	svc, err := NewFromJSON(data)
	if err != nil {
		t.Fatalf("NewFromJSON failed: %v", err)
	}
	if svc.File() != "out.js" {
		t.Errorf("File() = %q, want %q", svc.File(), "out.js")
	}
}

func TestNewFromJSONMissingRequiredKeys(t *testing.T) {
	tests := []struct {
		name string
		json string
		key  string
	}{
		{"missing_sources", `{"names": [], "mappings": ""}`, "sources"},
		{"missing_mappings", `{"names": [], "sources": []}`, "mappings"},
		{"missing_names", `{"sources": [], "mappings": ""}`, "names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromJSON([]byte(tt.json))
			if err == nil {
				t.Fatal("expected an error")
			}
			smErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if smErr.Kind != ErrMissingRequiredKey {
				t.Errorf("Kind = %v, want ErrMissingRequiredKey", smErr.Kind)
			}
			if smErr.Key != tt.key {
				t.Errorf("Key = %q, want %q", smErr.Key, tt.key)
			}
		})
	}
}

func TestNewFromJSONMalformed(t *testing.T) {
	_, err := NewFromJSON([]byte(`not json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestNewFromJSONNotAnArray(t *testing.T) {
	tests := []struct {
		name string
		json string
		key  string
	}{
		{"names_object", `{"names": {}, "sources": [], "mappings": ""}`, "names"},
		{"sources_string", `{"names": [], "sources": "a.js", "mappings": ""}`, "sources"},
		{"sourcesContent_number", `{"names": [], "sources": [], "mappings": "", "sourcesContent": 1}`, "sourcesContent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromJSON([]byte(tt.json))
			if err == nil {
				t.Fatal("expected an error")
			}
			smErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if smErr.Kind != ErrNotAnArray {
				t.Errorf("Kind = %v, want ErrNotAnArray", smErr.Kind)
			}
			if smErr.Field != tt.key {
				t.Errorf("Field = %q, want %q", smErr.Field, tt.key)
			}
		})
	}
}

func TestNewFromJSONNullArraysAllowed(t *testing.T) {
	_, err := NewFromJSON([]byte(`{"names": null, "sources": [], "mappings": "", "sourcesContent": null}`))
	if err != nil {
		t.Fatalf("null arrays should be accepted as empty, got: %v", err)
	}
}

// ============================================================================
// Position Query Tests
// ============================================================================

func buildService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Envelope{
		Names:    []string{"foo", "bar"},
		Sources:  []string{"a.js", "b.js"},
		Mappings: "AAAA,KAECA;AACA,OAECC",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc
}

func TestPositionByGenerated(t *testing.T) {
	svc := buildService(t)

	pos, ok := svc.PositionByGenerated(1, 1, BiasExact)
	if !ok {
		t.Fatal("expected a match at 1:1")
	}
	if pos.Source != "a.js" {
		t.Errorf("Source = %q, want %q", pos.Source, "a.js")
	}
	if pos.GeneratedLine != 1 || pos.GeneratedColumn != 1 {
		t.Errorf("generated pos = %d:%d, want 1:1", pos.GeneratedLine, pos.GeneratedColumn)
	}
}

func TestPositionByGeneratedName(t *testing.T) {
	svc := buildService(t)

	pos, ok := svc.PositionByGenerated(1, 6, BiasExact)
	if !ok {
		t.Fatal("expected a match")
	}
	if pos.Name == nil {
		t.Fatal("expected a resolved name")
	}
	if *pos.Name != "foo" {
		t.Errorf("Name = %q, want %q", *pos.Name, "foo")
	}
}

func TestPositionByByteOffset(t *testing.T) {
	svc := buildService(t)
	text := "console.log(x)\nsecond line"
	idx := NewLineIndex(text)

	pos, ok := svc.PositionByByteOffset(idx, 5, false, BiasExact)
	if !ok {
		t.Fatal("expected a match")
	}
	if pos.GeneratedLine != 1 || pos.GeneratedColumn != 6 {
		t.Errorf("generated pos = %d:%d, want 1:6", pos.GeneratedLine, pos.GeneratedColumn)
	}
	if pos.Name == nil || *pos.Name != "foo" {
		t.Errorf("Name = %v, want %q", pos.Name, "foo")
	}
}

func TestPositionByByteOffsetMiss(t *testing.T) {
	svc := buildService(t)
	idx := NewLineIndex(strings.Repeat("x", 100))

	_, ok := svc.PositionByByteOffset(idx, 50, false, BiasExact)
	if ok {
		t.Error("expected no match for an offset with no exact segment")
	}
}

func TestPositionByGeneratedMiss(t *testing.T) {
	svc := buildService(t)
	if _, ok := svc.PositionByGenerated(99, 1, BiasFloor); ok {
		t.Error("out-of-range line should not resolve")
	}
}

func TestPositionByOriginalIndex(t *testing.T) {
	svc := buildService(t)

	pos, ok, err := svc.PositionByOriginal(1, 1, 0, BiasExact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if pos.Source != "a.js" {
		t.Errorf("Source = %q, want %q", pos.Source, "a.js")
	}
}

func TestPositionByOriginalStringSource(t *testing.T) {
	svc := buildService(t)

	pos, ok, err := svc.PositionByOriginal(1, 1, "a.js", BiasExact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if pos.Source != "a.js" {
		t.Errorf("Source = %q, want %q", pos.Source, "a.js")
	}
}

func TestPositionByOriginalSourceNotFoundIndex(t *testing.T) {
	svc := buildService(t)

	_, _, err := svc.PositionByOriginal(1, 1, 99, BiasExact)
	if err == nil {
		t.Fatal("expected SOURCE_NOT_FOUND for an out-of-range index")
	}
	if err.(*Error).Kind != ErrSourceNotFound {
		t.Errorf("Kind = %v, want ErrSourceNotFound", err.(*Error).Kind)
	}
}

func TestPositionByOriginalMiss(t *testing.T) {
	svc := buildService(t)

	_, ok, err := svc.PositionByOriginal(99, 99, 0, BiasExact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no match for an out-of-range original position")
	}
}

func TestResolveSourceIndex(t *testing.T) {
	svc := buildService(t)

	idx, err := svc.resolveSourceIndex("b.js")
	if err != nil {
		t.Fatalf("resolveSourceIndex failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("resolveSourceIndex(\"b.js\") = %d, want 1", idx)
	}

	idx, err = svc.resolveSourceIndex("a")
	if err != nil {
		t.Fatalf("resolveSourceIndex failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("resolveSourceIndex(\"a\") = %d, want 0", idx)
	}

	_, err = svc.resolveSourceIndex("nope")
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.(*Error).Kind != ErrSourceNotFound {
		t.Errorf("Kind = %v, want ErrSourceNotFound", err.(*Error).Kind)
	}

	_, err = svc.resolveSourceIndex(3.14)
	if err == nil {
		t.Fatal("expected an error for an unsupported source query type")
	}
}

// ============================================================================
// Snippet Tests
// ============================================================================

func TestPositionWithSnippet(t *testing.T) {
	content := "line1\nline2\nline3\nline4\nline5"
	svc, err := New(Envelope{
		Names:          []string{},
		Sources:        []string{"a.js"},
		SourcesContent: []*string{&content},
		Mappings:       "GAGA",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// "GAGA": genCol delta 3, srcIdx delta 0, line delta 3, col delta 0
	// -> original line 4 (1-based).
	pos, ok := svc.PositionWithSnippet(1, 4, BiasExact, SnippetOptions{LinesBefore: 2, LinesAfter: 1})
	if !ok {
		t.Fatal("expected a snippet")
	}
	if pos.OriginalLine != 4 {
		t.Fatalf("OriginalLine = %d, want 4", pos.OriginalLine)
	}
	if pos.StartLine != 2 || pos.EndLine != 5 {
		t.Errorf("StartLine/EndLine = %d/%d, want 2/5", pos.StartLine, pos.EndLine)
	}
}

func TestPositionWithSnippetNoContent(t *testing.T) {
	svc, err := New(Envelope{Names: []string{}, Sources: []string{"a.js"}, Mappings: "AAAA"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := svc.PositionWithSnippet(1, 1, BiasExact, DefaultSnippetOptions()); ok {
		t.Error("expected no snippet when sourcesContent is absent")
	}
}

func TestPositionWithContentUsesDefaultWindow(t *testing.T) {
	content := strings.Repeat("x\n", 20)
	svc, err := New(Envelope{
		Names:          []string{},
		Sources:        []string{"a.js"},
		SourcesContent: []*string{&content},
		Mappings:       "AAKA",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	pos, ok := svc.PositionWithContent(1, 1, BiasExact)
	if !ok {
		t.Fatal("expected a snippet")
	}
	want := DefaultSnippetOptions()
	if pos.EndLine-pos.StartLine > want.LinesBefore+want.LinesAfter+1 {
		t.Errorf("snippet window too wide: %d lines", pos.EndLine-pos.StartLine)
	}
}

// ============================================================================
// Concat Tests
// ============================================================================

func TestConcatCombinesSourcesAndNames(t *testing.T) {
	a, err := New(Envelope{Names: []string{"x"}, Sources: []string{"a.js"}, Mappings: "AAAA"})
	if err != nil {
		t.Fatalf("New a failed: %v", err)
	}
	b, err := New(Envelope{Names: []string{"y"}, Sources: []string{"b.js"}, Mappings: "AAAA,AAAA"})
	if err != nil {
		t.Fatalf("New b failed: %v", err)
	}

	if err := a.Concat(b); err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	if len(a.Sources()) != 2 || a.Sources()[1] != "b.js" {
		t.Errorf("Sources() = %v, want [a.js b.js]", a.Sources())
	}
	if len(a.Names()) != 2 || a.Names()[1] != "y" {
		t.Errorf("Names() = %v, want [x y]", a.Names())
	}

	env := a.toEnvelope()
	want := "AAAA;ACAA,AAAA"
	if env.Mappings != want {
		t.Errorf("Mappings = %q, want %q", env.Mappings, want)
	}
}

func TestConcatEmptyFails(t *testing.T) {
	svc, _ := New(Envelope{Names: []string{}, Sources: []string{}, Mappings: ""})
	if err := svc.Concat(); err == nil {
		t.Fatal("expected ErrEmptyConcat")
	} else if err.(*Error).Kind != ErrEmptyConcat {
		t.Errorf("Kind = %v, want ErrEmptyConcat", err.(*Error).Kind)
	}
}

func TestConcatIsNotCommutative(t *testing.T) {
	a, _ := New(Envelope{Names: []string{}, Sources: []string{"a.js"}, Mappings: "AAAA"})
	b, _ := New(Envelope{Names: []string{}, Sources: []string{"b.js"}, Mappings: "AAAA"})

	ab, err := a.ConcatNewMap(b)
	if err != nil {
		t.Fatalf("ConcatNewMap(a,b) failed: %v", err)
	}
	ba, err := b.ConcatNewMap(a)
	if err != nil {
		t.Fatalf("ConcatNewMap(b,a) failed: %v", err)
	}

	if ab.Sources()[0] == ba.Sources()[0] {
		t.Fatal("concat(a,b) and concat(b,a) should have different leading sources")
	}
}

func TestConcatNewMapLeavesReceiverUnchanged(t *testing.T) {
	a, _ := New(Envelope{Names: []string{}, Sources: []string{"a.js"}, Mappings: "AAAA"})
	b, _ := New(Envelope{Names: []string{}, Sources: []string{"b.js"}, Mappings: "AAAA"})

	_, err := a.ConcatNewMap(b)
	if err != nil {
		t.Fatalf("ConcatNewMap failed: %v", err)
	}
	if len(a.Sources()) != 1 {
		t.Errorf("receiver was mutated: Sources() = %v", a.Sources())
	}
}

func TestConcatAtomicOnFailure(t *testing.T) {
	a, _ := New(Envelope{Names: []string{}, Sources: []string{"a.js"}, Mappings: "AAAA"})
	bad := &Service{
		names:   []string{},
		sources: []string{"bad.js"},
		engine:  NewMappingEngine(Map{{{GeneratedLine: 1, GeneratedColumn: -1}}}),
	}

	before := append([]string(nil), a.Sources()...)
	err := a.Concat(bad)
	if err == nil {
		t.Fatal("expected an error from a malformed operand")
	}
	if len(a.Sources()) != len(before) {
		t.Error("a failing Concat must leave the receiver unchanged")
	}
}

func TestValidateSourcesContentArity(t *testing.T) {
	content := "hello"
	svc, err := New(Envelope{
		Names:          []string{},
		Sources:        []string{"a.js", "b.js"},
		SourcesContent: []*string{&content},
		Mappings:       "",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := svc.ValidateSourcesContentArity(); err == nil {
		t.Fatal("expected an arity mismatch error")
	} else if err.(*Error).Kind != ErrSourcesContentArity {
		t.Errorf("Kind = %v, want ErrSourcesContentArity", err.(*Error).Kind)
	}
}

func TestValidateSourcesContentArityEmptyOK(t *testing.T) {
	svc, err := New(Envelope{Names: []string{}, Sources: []string{"a.js"}, Mappings: ""})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := svc.ValidateSourcesContentArity(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ============================================================================
// Serialization Tests
// ============================================================================

func TestToJSONFieldOrder(t *testing.T) {
	svc, err := New(Envelope{
		File:     "out.js",
		Names:    []string{"x"},
		Sources:  []string{"a.js"},
		Mappings: "AAAA",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	data, err := svc.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	order := []string{"version", "file", "names", "sources", "mappings"}
	last := -1
	for _, key := range order {
		i := strings.Index(string(data), fmt.Sprintf("%q", key))
		if i < 0 {
			t.Fatalf("key %q missing from output: %s", key, data)
		}
		if i < last {
			t.Fatalf("key %q out of order in output: %s", key, data)
		}
		last = i
	}
}

func TestToJSONRoundtrip(t *testing.T) {
	svc, err := New(Envelope{
		File:     "out.js",
		Names:    []string{"x", "y"},
		Sources:  []string{"a.js"},
		Mappings: "AAAA,KAECA",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	data, err := svc.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if env.Version != 3 {
		t.Errorf("Version = %d, want 3", env.Version)
	}
	if env.Mappings != "AAAA,KAECA" {
		t.Errorf("Mappings = %q, want %q", env.Mappings, "AAAA,KAECA")
	}
}

func TestToDataURI(t *testing.T) {
	svc, err := New(Envelope{Names: []string{}, Sources: []string{}, Mappings: ""})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	uri, err := svc.ToDataURI()
	if err != nil {
		t.Fatalf("ToDataURI failed: %v", err)
	}
	const prefix = "data:application/json;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("uri = %q, missing prefix %q", uri, prefix)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("base64 decode failed: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
}

func TestToCommentInline(t *testing.T) {
	svc, _ := New(Envelope{Names: []string{}, Sources: []string{}, Mappings: ""})
	comment, err := svc.ToComment(true)
	if err != nil {
		t.Fatalf("ToComment failed: %v", err)
	}
	if !strings.HasPrefix(comment, "//# sourceMappingURL=data:application/json;base64,") {
		t.Errorf("comment = %q, unexpected prefix", comment)
	}
}

func TestToCommentExternal(t *testing.T) {
	svc, _ := New(Envelope{File: "bundle.js", Names: []string{}, Sources: []string{}, Mappings: ""})
	comment, err := svc.ToComment(false)
	if err != nil {
		t.Fatalf("ToComment failed: %v", err)
	}
	want := "//# sourceMappingURL=bundle.js.map"
	if comment != want {
		t.Errorf("comment = %q, want %q", comment, want)
	}
}
