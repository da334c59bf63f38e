package relay

import "strings"

// fakeDoc is an in-memory line-oriented document. Like a real editor model
// it always has at least one line, and programmatic SetValue fires the
// editor's change listeners synchronously.
type fakeDoc struct {
	editor *fakeEditor
	lines  []string

	// silent suppresses the synchronous echo of SetValue, modeling editors
	// that deliver programmatic-write events on a later tick.
	silent bool
}

func (d *fakeDoc) Value() string { return strings.Join(d.lines, "\n") }

func (d *fakeDoc) SetValue(content string) {
	d.lines = strings.Split(content, "\n")
	if d.editor != nil && !d.silent {
		d.editor.fireContentChange(ContentChange{
			Range: Range{StartLine: 1, StartColumn: 1, EndLine: len(d.lines), EndColumn: 1},
			Text:  content,
		})
	}
}

func (d *fakeDoc) LineCount() int { return len(d.lines) }

func (d *fakeDoc) LineMaxColumn(line int) int {
	if line < 1 || line > len(d.lines) {
		return 1
	}
	return len(d.lines[line-1]) + 1
}

type fakeEditor struct {
	doc      *fakeDoc
	readOnly bool
	cursor   Position
	focus    int

	decorations    []Decoration
	decorationsSet int

	nextHandlerID  int
	changeHandlers map[int]func(ContentChange)
	cursorHandlers map[int]func(Position)
}

func newFakeEditor(content string) *fakeEditor {
	e := &fakeEditor{
		changeHandlers: make(map[int]func(ContentChange)),
		cursorHandlers: make(map[int]func(Position)),
	}
	e.doc = &fakeDoc{editor: e, lines: strings.Split(content, "\n")}
	return e
}

func (e *fakeEditor) Model() Document {
	if e.doc == nil {
		return nil
	}
	return e.doc
}

func (e *fakeEditor) SetReadOnly(readOnly bool) { e.readOnly = readOnly }

func (e *fakeEditor) SetCursor(pos Position) {
	e.cursor = pos
	for _, fn := range e.snapshotCursorHandlers() {
		fn(pos)
	}
}

func (e *fakeEditor) Focus() { e.focus++ }

func (e *fakeEditor) ApplyDecorations(decorations []Decoration) {
	e.decorations = decorations
	e.decorationsSet++
}

func (e *fakeEditor) OnContentChange(fn func(ContentChange)) func() {
	id := e.nextHandlerID
	e.nextHandlerID++
	e.changeHandlers[id] = fn
	return func() { delete(e.changeHandlers, id) }
}

func (e *fakeEditor) OnCursorChange(fn func(Position)) func() {
	id := e.nextHandlerID
	e.nextHandlerID++
	e.cursorHandlers[id] = fn
	return func() { delete(e.cursorHandlers, id) }
}

func (e *fakeEditor) fireContentChange(change ContentChange) {
	for _, fn := range e.snapshotChangeHandlers() {
		fn(change)
	}
}

func (e *fakeEditor) snapshotChangeHandlers() []func(ContentChange) {
	handlers := make([]func(ContentChange), 0, len(e.changeHandlers))
	for _, fn := range e.changeHandlers {
		handlers = append(handlers, fn)
	}
	return handlers
}

func (e *fakeEditor) snapshotCursorHandlers() []func(Position) {
	handlers := make([]func(Position), 0, len(e.cursorHandlers))
	for _, fn := range e.cursorHandlers {
		handlers = append(handlers, fn)
	}
	return handlers
}

// typeText simulates typing at the end of a line.
func (e *fakeEditor) typeText(line int, text string) {
	col := len(e.doc.lines[line-1]) + 1
	e.doc.lines[line-1] += text
	e.fireContentChange(ContentChange{
		Range: Range{StartLine: line, StartColumn: col, EndLine: line, EndColumn: col},
		Text:  text,
	})
}

// pressEnter simulates a newline inserted at the end of a line.
func (e *fakeEditor) pressEnter(line int) {
	col := len(e.doc.lines[line-1]) + 1
	rest := append([]string{""}, e.doc.lines[line:]...)
	e.doc.lines = append(e.doc.lines[:line], rest...)
	e.fireContentChange(ContentChange{
		Range: Range{StartLine: line, StartColumn: col, EndLine: line, EndColumn: col},
		Text:  "\n",
	})
}

// backspaceMerge simulates backspace at the start of a line merging it into
// the previous one: a cross-line range replaced with empty text.
func (e *fakeEditor) backspaceMerge(line int) {
	prevCol := len(e.doc.lines[line-2]) + 1
	e.doc.lines[line-2] += e.doc.lines[line-1]
	e.doc.lines = append(e.doc.lines[:line-1], e.doc.lines[line:]...)
	e.fireContentChange(ContentChange{
		Range: Range{StartLine: line - 1, StartColumn: prevCol, EndLine: line, EndColumn: 1},
		Text:  "",
	})
}

type fakePresence struct {
	self   string
	roster []string
}

func (p *fakePresence) SelfID() string         { return p.self }
func (p *fakePresence) Participants() []string { return p.roster }
