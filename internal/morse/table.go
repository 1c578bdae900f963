// internal/morse/table.go
// Package morse holds the Morse code table and the impulse buffer used to
// build a letter from hand gestures.
package morse

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Unknown is recorded in place of a character when an impulse sequence has no
// table entry.
const Unknown = '?'

// MaxSignalLength is the longest impulse sequence the table can address.
// The tree has 64 slots, so sequences longer than 5 can never resolve, but the
// buffer allows a little slack before rejecting appends.
const MaxSignalLength = 8

// Impulse is a single Morse element produced by one debounced gesture.
type Impulse uint8

const (
	// Dot is produced by a closed fist
	Dot Impulse = iota
	// Dash is produced by an open hand
	Dash
)

// String returns the wire name of the impulse ("dot" or "dash").
func (i Impulse) String() string {
	switch i {
	case Dot:
		return "dot"
	case Dash:
		return "dash"
	default:
		return fmt.Sprintf("impulse(%d)", uint8(i))
	}
}

// Symbol returns the display marker for the impulse.
func (i Impulse) Symbol() byte {
	if i == Dash {
		return '-'
	}
	return '.'
}

var (
	// ErrInvalidSymbol indicates a code string contained something other than '.' or '-'
	ErrInvalidSymbol = errors.New("morse code may only contain '.' and '-'")
	// ErrCodeTooLong indicates a code string exceeds MaxSignalLength
	ErrCodeTooLong = errors.New("morse code exceeds maximum signal length")
)

// tree is the binary tree for Morse code lookup.
// Left branch = dot, right branch = dash.
// Parent at i, dot child at 2i, dash child at 2i+1. Index 1 is the empty sequence.
// Only the 26 letters and 10 digits are mapped.
var tree = [64]rune{
	0,   // 0: unused
	0,   // 1: start
	'E', // 2: .
	'T', // 3: -
	'I', // 4: ..
	'A', // 5: .-
	'N', // 6: -.
	'M', // 7: --
	'S', // 8: ...
	'U', // 9: ..-
	'R', // 10: .-.
	'W', // 11: .--
	'D', // 12: -..
	'K', // 13: -.-
	'G', // 14: --.
	'O', // 15: ---
	'H', // 16: ....
	'V', // 17: ...-
	'F', // 18: ..-.
	0,   // 19: ..--
	'L', // 20: .-..
	0,   // 21: .-.-
	'P', // 22: .--.
	'J', // 23: .---
	'B', // 24: -...
	'X', // 25: -..-
	'C', // 26: -.-.
	'Y', // 27: -.--
	'Z', // 28: --..
	'Q', // 29: --.-
	0,   // 30: ---.
	0,   // 31: ----
	'5', // 32: .....
	'4', // 33: ....-
	0,   // 34: ...-.
	'3', // 35: ...--
	0,   // 36: ..-..
	0,   // 37: ..-.-
	0,   // 38: ..--.
	'2', // 39: ..---
	0,   // 40: .-...
	0,   // 41: .-..-
	0,   // 42: .-.-.
	0,   // 43: .-.--
	0,   // 44: .--..
	0,   // 45: .--.-
	0,   // 46: .---.
	'1', // 47: .----
	'6', // 48: -....
	0,   // 49: -...-
	0,   // 50: -..-.
	0,   // 51: -..--
	0,   // 52: -.-..
	0,   // 53: -.-.-
	0,   // 54: -.--.
	0,   // 55: -.---
	'7', // 56: --...
	0,   // 57: --..-
	0,   // 58: --.-.
	0,   // 59: --.--
	'8', // 60: ---..
	0,   // 61: ---.-
	'9', // 62: ----.
	'0', // 63: -----
}

// reverse maps each character to its tree index. Built once from tree.
var reverse = buildReverse()

func buildReverse() map[rune]int {
	m := make(map[rune]int, 36)
	for i, r := range tree {
		if r != 0 {
			m[r] = i
		}
	}
	return m
}

// Entry is one row of the Morse table.
type Entry struct {
	Char rune
	Code string
}

// Lookup translates an impulse sequence into a character.
// It never fails: empty, overlong or unmapped sequences yield Unknown.
func Lookup(seq []Impulse) rune {
	if len(seq) == 0 {
		return Unknown
	}
	idx := 1
	for _, imp := range seq {
		idx = idx * 2
		if imp == Dash {
			idx++
		}
		if idx >= len(tree) {
			return Unknown
		}
	}
	if r := tree[idx]; r != 0 {
		return r
	}
	return Unknown
}

// Encode returns the impulse sequence for a letter or digit.
// Letters are matched case-insensitively.
func Encode(r rune) ([]Impulse, bool) {
	idx, ok := reverse[unicode.ToUpper(r)]
	if !ok {
		return nil, false
	}
	return pathTo(idx), true
}

// pathTo walks from a tree index back to the root and returns the branch
// choices in transmission order.
func pathTo(idx int) []Impulse {
	var seq []Impulse
	for idx > 1 {
		if idx%2 == 1 {
			seq = append(seq, Dash)
		} else {
			seq = append(seq, Dot)
		}
		idx /= 2
	}
	for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
		seq[i], seq[j] = seq[j], seq[i]
	}
	return seq
}

// Render formats an impulse sequence as '.' and '-' markers.
func Render(seq []Impulse) string {
	var b strings.Builder
	b.Grow(len(seq))
	for _, imp := range seq {
		b.WriteByte(imp.Symbol())
	}
	return b.String()
}

// Parse is the inverse of Render.
func Parse(code string) ([]Impulse, error) {
	if len(code) > MaxSignalLength {
		return nil, ErrCodeTooLong
	}
	seq := make([]Impulse, 0, len(code))
	for _, c := range code {
		switch c {
		case '.':
			seq = append(seq, Dot)
		case '-':
			seq = append(seq, Dash)
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, c)
		}
	}
	return seq, nil
}

// Entries lists every mapped character in tree order (shortest codes first).
func Entries() []Entry {
	entries := make([]Entry, 0, len(reverse))
	for i, r := range tree {
		if r == 0 {
			continue
		}
		entries = append(entries, Entry{Char: r, Code: Render(pathTo(i))})
	}
	return entries
}
