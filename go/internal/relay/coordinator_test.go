package relay

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestCoordinator(content, self string, roster []string) (*Coordinator, *fakeEditor) {
	editor := newFakeEditor(content)
	presence := &fakePresence{self: self, roster: roster}
	coord := NewCoordinator(editor, presence, clockwork.NewFakeClock())
	return coord, editor
}

func activeDecorationLines(decorations []Decoration) []int {
	var lines []int
	for _, d := range decorations {
		if d.Class == ClassActiveLine {
			lines = append(lines, d.Range.StartLine)
		}
	}
	return lines
}

func TestActivateMakesFirstParticipantHost(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob", "carol"})

	coord.Activate()

	if got := coord.CurrentState(); got != StateActive {
		t.Fatalf("state = %v, want StateActive", got)
	}
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q, want %q", got, "alice")
	}
	if got := coord.ActiveLine(); got != 3 {
		t.Errorf("active line = %d, want 3", got)
	}
	if editor.readOnly {
		t.Error("editor read-only for the host")
	}
	want := Position{Line: 3, Column: 2}
	if editor.cursor != want {
		t.Errorf("cursor = %+v, want %+v", editor.cursor, want)
	}
	if editor.focus == 0 {
		t.Error("editor never focused")
	}
	if got := activeDecorationLines(editor.decorations); len(got) != 1 || got[0] != 3 {
		t.Errorf("active decoration lines = %v, want [3]", got)
	}
}

func TestActivateNonHostIsReadOnly(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "bob", []string{"alice", "bob"})

	coord.Activate()

	if !editor.readOnly {
		t.Error("editor writable for a non-host")
	}
	if editor.focus != 0 {
		t.Error("editor focused for a non-host")
	}
	if len(editor.decorations) != 1 || editor.decorations[0].Class != ClassLockedLine {
		t.Errorf("decorations = %+v, want a single locked range", editor.decorations)
	}
}

func TestActivateEmptyRosterIsNoOp(t *testing.T) {
	coord, editor := newTestCoordinator("a", "alice", nil)

	coord.Activate()

	if got := coord.CurrentState(); got != StateIdle {
		t.Fatalf("state = %v, want StateIdle", got)
	}
	if editor.decorationsSet != 0 {
		t.Error("decorations applied despite skipped activation")
	}
	// No subscriptions either: edits pass through untouched.
	editor.pressEnter(1)
	if got := coord.Host(); got != "" {
		t.Errorf("host = %q after edit, want empty", got)
	}
}

func TestNewlineRotatesForwardThroughRoster(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob", "carol"})
	coord.Activate()

	editor.pressEnter(3)
	if got := coord.Host(); got != "bob" {
		t.Fatalf("host after first newline = %q, want %q", got, "bob")
	}
	if got := coord.ActiveLine(); got != 4 {
		t.Errorf("active line = %d, want 4", got)
	}
	if !editor.readOnly {
		t.Error("editor still writable after losing the turn")
	}

	editor.pressEnter(4)
	if got := coord.Host(); got != "carol" {
		t.Fatalf("host after second newline = %q, want %q", got, "carol")
	}

	// A full lap returns the turn to the first participant.
	editor.pressEnter(5)
	if got := coord.Host(); got != "alice" {
		t.Errorf("host after full lap = %q, want %q", got, "alice")
	}
	if got := coord.ActiveLine(); got != 6 {
		t.Errorf("active line = %d, want 6", got)
	}
	if editor.readOnly {
		t.Error("editor read-only after regaining the turn")
	}
}

func TestCrossLineDeletionRotatesBackwardOnce(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob", "carol"})
	coord.Activate()

	editor.backspaceMerge(3)

	if got := coord.Host(); got != "carol" {
		t.Errorf("host = %q, want %q", got, "carol")
	}
	if got := coord.ActiveLine(); got != 2 {
		t.Errorf("active line = %d, want 2", got)
	}
}

func TestOutOfLineEditIsReverted(t *testing.T) {
	for _, line := range []int{1, 2} {
		coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob"})
		coord.Activate()

		editor.typeText(line, "x")

		if got := editor.doc.Value(); got != "a\nb\nc" {
			t.Errorf("line %d edit: document = %q, want restored %q", line, got, "a\nb\nc")
		}
		if got := coord.Host(); got != "alice" {
			t.Errorf("line %d edit: host = %q, want unchanged %q", line, got, "alice")
		}
		if got := coord.ActiveLine(); got != 3 {
			t.Errorf("line %d edit: active line = %d, want 3", line, got)
		}
		want := Position{Line: 3, Column: 2}
		if editor.cursor != want {
			t.Errorf("line %d edit: cursor = %+v, want %+v", line, editor.cursor, want)
		}
	}
}

func TestRevertDoesNotConsumeFollowingEdits(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob"})
	coord.Activate()

	// The corrective write's synchronous echo releases the guard, so the
	// next real edit is processed normally.
	editor.typeText(1, "x")
	editor.typeText(3, "z")

	if got := editor.doc.Value(); got != "a\nb\ncz" {
		t.Fatalf("document = %q, want %q", got, "a\nb\ncz")
	}

	// A later out-of-line edit rolls back to the newest accepted snapshot.
	editor.typeText(2, "y")
	if got := editor.doc.Value(); got != "a\nb\ncz" {
		t.Errorf("document = %q, want restored %q", got, "a\nb\ncz")
	}
}

func TestAsynchronousEchoConsumedWithinGuardWindow(t *testing.T) {
	editor := newFakeEditor("a\nb\nc")
	editor.doc.silent = true
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(editor, &fakePresence{self: "alice", roster: []string{"alice", "bob"}}, clock)
	coord.Activate()

	editor.typeText(1, "x")
	if got := editor.doc.Value(); got != "a\nb\nc" {
		t.Fatalf("document = %q, want restored %q", got, "a\nb\nc")
	}

	// The echo of the restoring write arrives a tick later. It spans the
	// whole document and contains newlines, but must not rotate the turn.
	editor.fireContentChange(ContentChange{
		Range: Range{StartLine: 1, StartColumn: 1, EndLine: 3, EndColumn: 1},
		Text:  "a\nb\nc",
	})
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q after echo, want %q", got, "alice")
	}

	// Guard fully released: the next newline rotates as usual.
	editor.doc.silent = false
	editor.pressEnter(3)
	if got := coord.Host(); got != "bob" {
		t.Errorf("host = %q after newline, want %q", got, "bob")
	}
}

func TestStaleGuardDoesNotSwallowLaterEdits(t *testing.T) {
	editor := newFakeEditor("a\nb\nc")
	editor.doc.silent = true
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(editor, &fakePresence{self: "alice", roster: []string{"alice", "bob"}}, clock)
	coord.Activate()

	editor.typeText(1, "x")

	// The echo never arrives; past the window the guard is stale and the
	// next change is processed on its own merits.
	clock.Advance(guardWindow + time.Millisecond)
	editor.doc.silent = false
	editor.pressEnter(3)

	if got := coord.Host(); got != "bob" {
		t.Errorf("host = %q, want %q", got, "bob")
	}
}

func TestNonHostDoesNotIssueCorrectiveWrites(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "bob", []string{"alice", "bob"})
	coord.Activate()

	// Bob's replica observes a stray out-of-line edit. Only alice's replica
	// may write the correction; bob waits for it to arrive.
	editor.typeText(1, "x")

	if got := editor.doc.Value(); got != "xa\nb\nc" {
		t.Errorf("document = %q, want the stray edit left for the host to correct", got)
	}
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q, want unchanged %q", got, "alice")
	}

	// The host's correction replicates in as a whole-document write. It
	// restores the snapshot bob already holds, so it must not rotate even
	// though it contains newlines.
	editor.doc.lines = []string{"a", "b", "c"}
	editor.fireContentChange(ContentChange{
		Range: Range{StartLine: 1, StartColumn: 1, EndLine: 3, EndColumn: 2},
		Text:  "a\nb\nc",
	})
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q after replicated correction, want %q", got, "alice")
	}
	if got := coord.ActiveLine(); got != 3 {
		t.Errorf("active line = %d, want 3", got)
	}
}

func TestHostCursorMoveRetargetsActiveLine(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob"})
	coord.Activate()

	editor.SetCursor(Position{Line: 1, Column: 1})

	if got := coord.ActiveLine(); got != 1 {
		t.Errorf("active line = %d, want 1", got)
	}
	if got := activeDecorationLines(editor.decorations); len(got) != 1 || got[0] != 1 {
		t.Errorf("active decoration lines = %v, want [1]", got)
	}
}

func TestNonHostCursorMoveIsIgnored(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "bob", []string{"alice", "bob"})
	coord.Activate()

	editor.SetCursor(Position{Line: 1, Column: 1})

	if got := coord.ActiveLine(); got != 3 {
		t.Errorf("active line = %d, want unchanged 3", got)
	}
}

func TestInLineEditUpdatesSnapshot(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob"})
	coord.Activate()

	editor.typeText(3, "cc")

	if got := editor.doc.Value(); got != "a\nb\nccc" {
		t.Errorf("document = %q, want %q", got, "a\nb\nccc")
	}
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q, want unchanged %q", got, "alice")
	}

	snap := coord.CurrentSnapshot()
	if snap.HostID != "alice" || snap.Line != 3 || len(snap.Participants) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDeactivateRestoresEditor(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "bob", []string{"alice", "bob"})
	coord.Activate()
	coord.Deactivate()

	if got := coord.CurrentState(); got != StateDeactivated {
		t.Fatalf("state = %v, want StateDeactivated", got)
	}
	if editor.readOnly {
		t.Error("editor still read-only after deactivation")
	}
	if editor.decorations != nil {
		t.Errorf("decorations = %+v, want cleared", editor.decorations)
	}

	// Subscriptions released: edits no longer rotate the turn.
	editor.pressEnter(3)
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q after deactivation edit, want %q", got, "alice")
	}
}

func TestDeactivatedCoordinatorStaysDeactivated(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice", "bob"})
	coord.Activate()
	coord.Deactivate()

	coord.Activate()

	if got := coord.CurrentState(); got != StateDeactivated {
		t.Fatalf("state = %v, want StateDeactivated", got)
	}
	if editor.readOnly {
		t.Error("editor read-only after attempted reactivation")
	}
	editor.pressEnter(3)
	if got := coord.Host(); got != "alice" {
		t.Errorf("host = %q after edit, want unchanged %q", got, "alice")
	}
}

func TestCursorSkippedWhenActiveLinePastDocumentEnd(t *testing.T) {
	coord, editor := newTestCoordinator("a\nb\nc", "alice", []string{"alice"})
	coord.Activate()
	before := editor.cursor

	// Document shrinks out from under the coordinator.
	editor.doc.lines = []string{"a"}
	coord.applyEditorState()

	if editor.cursor != before {
		t.Errorf("cursor = %+v, want unchanged %+v", editor.cursor, before)
	}
	if len(editor.decorations) != 1 {
		t.Errorf("decorations = %+v, want one per remaining line", editor.decorations)
	}
}
