package relay

// DecorationClass names the visual treatment applied to a range.
type DecorationClass string

const (
	ClassActiveLine  DecorationClass = "relay-active-line"
	ClassLockedLine  DecorationClass = "relay-locked-line"
	ClassActiveGlyph DecorationClass = "relay-active-glyph"
	ClassLockedGlyph DecorationClass = "relay-locked-glyph"
)

// Decoration is one visual range annotation for the editor to render.
type Decoration struct {
	Range      Range
	Class      DecorationClass
	GlyphClass DecorationClass
	WholeLine  bool
}

// RenderDecorations projects turn state onto a decoration set. Non-hosts see
// the whole document as one locked range; the host sees the active line
// highlighted and every other line individually locked, keeping per-line
// addressability for incremental updates. A nil or empty document yields no
// decorations.
func RenderDecorations(isHost bool, activeLine int, doc Document) []Decoration {
	if doc == nil {
		return nil
	}
	totalLines := doc.LineCount()
	if totalLines < 1 {
		return nil
	}

	if !isHost {
		return []Decoration{{
			Range: Range{
				StartLine:   1,
				StartColumn: 1,
				EndLine:     totalLines,
				EndColumn:   doc.LineMaxColumn(totalLines),
			},
			Class:      ClassLockedLine,
			GlyphClass: ClassLockedGlyph,
			WholeLine:  true,
		}}
	}

	decorations := make([]Decoration, 0, totalLines)
	for line := 1; line <= totalLines; line++ {
		d := Decoration{
			Range: Range{
				StartLine:   line,
				StartColumn: 1,
				EndLine:     line,
				EndColumn:   doc.LineMaxColumn(line),
			},
			Class:     ClassLockedLine,
			WholeLine: true,
		}
		if line == activeLine {
			d.Class = ClassActiveLine
			d.GlyphClass = ClassActiveGlyph
		}
		decorations = append(decorations, d)
	}
	return decorations
}
