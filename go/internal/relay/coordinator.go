package relay

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the coordinator lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateActive
	StateDeactivated
)

// guardWindow caps how long a corrective write's echo guard stays armed when
// the editor never delivers the echoing change event.
const guardWindow = 150 * time.Millisecond

// Coordinator rotates edit authority among participants line by line. The
// current host owns exactly one line; pressing Enter passes the turn
// forward, deleting a line backward, and any edit outside the active line is
// silently reverted.
//
// Each client runs its own instance against the same replicated document and
// roster snapshot; there is no server arbitration of turn state, so copies
// converge only when every client observes identical inputs. Not safe for
// concurrent use: all calls must come from the editor's event loop.
type Coordinator struct {
	editor   Editor
	presence Presence
	clock    clockwork.Clock

	state       State
	hostID      string
	line        int
	roster      []string
	prevContent string

	// masking suppresses the change handler while a programmatic write is
	// being applied, so the write cannot re-trigger rotation synchronously.
	masking bool
	// pendingEchoes counts corrective writes whose change events have not
	// been observed yet; the guard releases when the echo arrives, with
	// guardExpires as the wall-clock fallback.
	pendingEchoes int
	guardExpires  time.Time

	unsubs []func()
}

// NewCoordinator creates an inactive coordinator over the given capabilities.
func NewCoordinator(editor Editor, presence Presence, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		editor:   editor,
		presence: presence,
		clock:    clock,
		line:     1,
	}
}

// Activate captures the roster snapshot, makes its first entry host, targets
// the document's last line, and begins intercepting edits. Activation with
// an empty roster is a no-op. A deactivated instance never reactivates; each
// round gets a fresh coordinator.
func (c *Coordinator) Activate() {
	if c.state != StateIdle {
		return
	}

	roster := c.presence.Participants()
	if len(roster) == 0 {
		log.Warn().Msg("relay activation skipped: empty roster")
		return
	}
	c.roster = append([]string(nil), roster...)
	c.hostID = c.roster[0]

	c.line = 1
	c.prevContent = ""
	if model := c.editor.Model(); model != nil {
		if lineCount := model.LineCount(); lineCount > 0 {
			c.line = lineCount
		}
		c.prevContent = model.Value()
	}

	c.state = StateActive
	c.applyEditorState()

	c.unsubs = append(c.unsubs,
		c.editor.OnContentChange(c.handleContentChange),
		c.editor.OnCursorChange(c.handleCursorChange),
	)

	log.Info().
		Str("host_id", c.hostID).
		Int("line", c.line).
		Int("participants", len(c.roster)).
		Msg("relay activated")
}

// Deactivate releases subscriptions, restores full read-write mode, and
// clears decorations. Terminal for this instance.
func (c *Coordinator) Deactivate() {
	if c.state != StateActive {
		return
	}
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.editor.SetReadOnly(false)
	c.editor.ApplyDecorations(nil)
	c.state = StateDeactivated
	log.Info().Msg("relay deactivated")
}

// CurrentState returns the lifecycle phase.
func (c *Coordinator) CurrentState() State {
	return c.state
}

// Host returns the current host identifier.
func (c *Coordinator) Host() string {
	return c.hostID
}

// ActiveLine returns the one line currently editable by the host.
func (c *Coordinator) ActiveLine() int {
	return c.line
}

// Snapshot captures the turn state for display.
type Snapshot struct {
	HostID       string   `json:"current_host"`
	Line         int      `json:"current_line"`
	Participants []string `json:"participants"`
}

// CurrentSnapshot returns the turn state for display.
func (c *Coordinator) CurrentSnapshot() Snapshot {
	roster := make([]string, len(c.roster))
	copy(roster, c.roster)
	return Snapshot{HostID: c.hostID, Line: c.line, Participants: roster}
}

// Name identifies the challenge.
func (c *Coordinator) Name() string {
	return "Relay Race"
}

// Description explains the challenge rules.
func (c *Coordinator) Description() string {
	return "Players alternate editing lines. Press Enter to pass relay forward, backspace on empty line to pass backward."
}

// handleContentChange intercepts every document edit while active, both
// locally-typed and replicated remote edits: all clients observe the same
// change stream, so all derive the same rotation. Corrective writes are the
// exception: only the host's replica issues one, and the other replicas
// recognize its arrival as a restore of the snapshot they already hold.
func (c *Coordinator) handleContentChange(change ContentChange) {
	if c.state != StateActive {
		return
	}
	if c.masking {
		// A programmatic write echoing back synchronously; swallow it and
		// release its guard.
		if c.pendingEchoes > 0 {
			c.pendingEchoes--
		}
		return
	}
	if c.pendingEchoes > 0 {
		if c.clock.Now().Before(c.guardExpires) {
			// The asynchronous echo of a corrective write.
			c.pendingEchoes--
			if model := c.editor.Model(); model != nil {
				c.prevContent = model.Value()
			}
			return
		}
		// Echo never arrived within the window; treat the guard as stale.
		c.pendingEchoes = 0
	}

	model := c.editor.Model()
	if model == nil {
		return
	}

	switch {
	case model.Value() == c.prevContent:
		// Another replica's corrective write restoring the accepted
		// snapshot; not an edit.
	case strings.Contains(change.Text, "\n"):
		c.rotate(1)
	case change.Range.StartLine < change.Range.EndLine && change.Text == "":
		c.rotate(-1)
	case change.Range.StartLine != c.line || change.Range.EndLine != c.line:
		if c.presence.SelfID() == c.hostID {
			c.revert(model)
		}
	default:
		c.prevContent = model.Value()
		c.applyDecorations()
	}
}

// handleCursorChange lets the host retarget the active line by moving the
// cursor before typing.
func (c *Coordinator) handleCursorChange(pos Position) {
	if c.state != StateActive || c.masking {
		return
	}
	if c.presence.SelfID() != c.hostID {
		return
	}
	c.line = pos.Line
	c.applyDecorations()
}

// rotate advances the host circularly through the roster and retargets the
// last document line.
func (c *Coordinator) rotate(direction int) {
	if len(c.roster) == 0 {
		return
	}
	c.masking = true
	defer func() { c.masking = false }()

	index := 0
	for i, id := range c.roster {
		if id == c.hostID {
			index = i
			break
		}
	}
	next := (index + direction + len(c.roster)) % len(c.roster)
	c.hostID = c.roster[next]

	if model := c.editor.Model(); model != nil {
		c.line = model.LineCount()
		if c.line < 1 {
			c.line = 1
		}
		c.prevContent = model.Value()
	}

	c.applyEditorState()

	log.Debug().
		Str("host_id", c.hostID).
		Int("line", c.line).
		Int("direction", direction).
		Msg("relay passed")
}

// revert restores the last accepted snapshot after an edit outside the
// active line, returning the cursor to the end of the active line. The echo
// guard is armed before the restoring write and released when that write's
// own change event is observed.
func (c *Coordinator) revert(model Document) {
	c.masking = true
	c.pendingEchoes++
	c.guardExpires = c.clock.Now().Add(guardWindow)

	model.SetValue(c.prevContent)
	if c.line <= model.LineCount() {
		c.editor.SetCursor(Position{Line: c.line, Column: model.LineMaxColumn(c.line)})
	}

	c.masking = false
	c.applyDecorations()
}

// applyEditorState applies read-only mode per host identity, positions the
// host's cursor at the end of the active line, and re-renders decorations.
// Cursor placement is skipped when the active line is past the document end.
func (c *Coordinator) applyEditorState() {
	isHost := c.presence.SelfID() == c.hostID
	c.editor.SetReadOnly(!isHost)

	if isHost {
		if model := c.editor.Model(); model != nil && c.line <= model.LineCount() {
			c.editor.SetCursor(Position{Line: c.line, Column: model.LineMaxColumn(c.line)})
			c.editor.Focus()
		}
	}
	c.applyDecorations()
}

func (c *Coordinator) applyDecorations() {
	isHost := c.presence.SelfID() == c.hostID
	c.editor.ApplyDecorations(RenderDecorations(isHost, c.line, c.editor.Model()))
}
