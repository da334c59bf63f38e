package relay

// Position is a 1-based line/column cursor location.
type Position struct {
	Line   int
	Column int
}

// Range spans from a start to an end position, both 1-based and inclusive of
// the start line.
type Range struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// ContentChange describes one document edit: the replaced range and the text
// that replaced it.
type ContentChange struct {
	Range Range
	Text  string
}

// Document is the text model behind an editor. Lines are 1-based.
type Document interface {
	Value() string
	SetValue(content string)
	LineCount() int
	// LineMaxColumn returns one past the last column of a line, the
	// position a cursor lands on at end of line.
	LineMaxColumn(line int) int
}

// Editor is the capability surface the coordinator drives. Model may return
// nil when no document is attached.
type Editor interface {
	Model() Document
	SetReadOnly(readOnly bool)
	SetCursor(pos Position)
	Focus()
	ApplyDecorations(decorations []Decoration)
	// OnContentChange registers a change listener and returns its
	// unsubscribe function.
	OnContentChange(fn func(ContentChange)) (unsubscribe func())
	// OnCursorChange registers a cursor listener and returns its
	// unsubscribe function.
	OnCursorChange(fn func(Position)) (unsubscribe func())
}

// Presence exposes the replicated participant roster and the local
// participant's identity.
type Presence interface {
	SelfID() string
	// Participants returns the currently-known participant identifiers in
	// observation order.
	Participants() []string
}
