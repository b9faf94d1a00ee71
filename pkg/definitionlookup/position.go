package definitionlookup

import (
	"strings"
	"unicode/utf8"
)

// Cursor is an editor position, line and character are zero based (CodeMirror convention).
type Cursor struct {
	Line int
	Ch   int
}

// IndexFromCursor converts a cursor into a character offset of text.
// A character past the end of a line is clamped to the line end.
func IndexFromCursor(text string, cursor Cursor) (int, bool) {
	if cursor.Line < 0 || cursor.Ch < 0 {
		return 0, false
	}

	offset, rest := 0, text
	for line := 0; line < cursor.Line; line++ {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			return 0, false
		}
		offset += utf8.RuneCountInString(rest[:i]) + 1
		rest = rest[i+1:]
	}
	return offset + columnInLine(rest, cursor.Ch), true
}

// PositionFromToken builds the Position of the token spanning [tokenStart,tokenEnd) on line.
func PositionFromToken(text string, line, tokenStart, tokenEnd int) (Position, bool) {
	if tokenEnd < tokenStart {
		return Position{}, false
	}
	start, ok := IndexFromCursor(text, Cursor{Line: line, Ch: tokenStart})
	if !ok {
		return Position{}, false
	}
	end, ok := IndexFromCursor(text, Cursor{Line: line, Ch: tokenEnd})
	if !ok {
		return Position{}, false
	}
	return Position{Start: start, End: end}, true
}

func columnInLine(rest string, ch int) int {
	column := 0
	for _, r := range rest {
		if column == ch || r == '\n' {
			break
		}
		column++
	}
	return column
}
