// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package makemk

import "fmt"

// Position names a single point in a source file, the generalization of
// the teacher's line-only srcpos to the column granularity a character
// level model needs.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// PChar is a single source character annotated with where it came from.
// Hide marks bytes that are physically present but semantically invisible:
// a folded "\<newline>" region, or whitespace a directive has suppressed.
// Hidden bytes are carried so position information survives, but are
// skipped by String/render.
type PChar struct {
	Pos  Position
	C    byte
	Hide bool
}

// PString is an ordered run of PChars: the unit the scanner, tokenizer and
// directive handler all operate on instead of raw []byte, so every result
// they hand back still knows its source position.
type PString []PChar

// NewPString wraps literal bytes starting at pos, advancing the column by
// one per byte and the line on '\n'. Used to seed synthetic text (command
// line assignments, built-in variable values) that has no real file
// position of its own.
func NewPString(s string, pos Position) PString {
	ps := make(PString, 0, len(s))
	line, col := pos.Line, pos.Column
	for i := 0; i < len(s); i++ {
		ps = append(ps, PChar{Pos: Position{pos.Filename, line, col}, C: s[i]})
		if s[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return ps
}

// String renders the visible bytes only; hidden bytes are dropped.
func (ps PString) String() string {
	b := make([]byte, 0, len(ps))
	for _, c := range ps {
		if c.Hide {
			continue
		}
		b = append(b, c.C)
	}
	return string(b)
}

// Raw renders every byte, hidden or not: the round-trip form used by
// render() to reconstruct the original makefile text.
func (ps PString) Raw() string {
	b := make([]byte, len(ps))
	for i, c := range ps {
		b[i] = c.C
	}
	return string(b)
}

func (ps PString) Len() int { return len(ps) }

// Pos reports the position of the first character, or a zero Position for
// an empty string.
func (ps PString) Pos() Position {
	if len(ps) == 0 {
		return Position{}
	}
	return ps[0].Pos
}

func (ps PString) Slice(i, j int) PString { return ps[i:j] }

func (ps PString) StartsWith(prefix string) bool {
	if len(prefix) > len(ps) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if ps[i].C != prefix[i] {
			return false
		}
	}
	return true
}

// LStrip drops leading visible-whitespace characters (space, tab); hidden
// characters are skipped over without counting as whitespace themselves.
func (ps PString) LStrip() PString {
	i := 0
	for i < len(ps) && (ps[i].Hide || isSpaceByte(ps[i].C)) {
		i++
	}
	return ps[i:]
}

func (ps PString) RStrip() PString {
	j := len(ps)
	for j > 0 && !ps[j-1].Hide && isSpaceByte(ps[j-1].C) {
		j--
	}
	return ps[:j]
}

func isSpaceByte(c byte) bool { return c == ' ' || c == '\t' }

// ConcatPString appends PStrings without mutating either argument's backing array.
func ConcatPString(parts ...PString) PString {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(PString, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// HideRange marks [i,j) of ps as hidden in place; stripCommentAndTrim uses
// it to hide a trailing comment.
func (ps PString) HideRange(i, j int) {
	for k := i; k < j && k < len(ps); k++ {
		ps[k].Hide = true
	}
}
