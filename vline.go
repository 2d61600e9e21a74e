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

// VLKind distinguishes the two folding rules a virtual line can be built
// with: statement lines collapse a continuation to one space, recipe lines
// keep the backslash-newline so the shell sees it.
type VLKind int

const (
	VLStatement VLKind = iota
	VLRecipe
)

// VirtualLine is one or more physical lines folded into a single logical
// line, per the §4.B folding rule.
type VirtualLine struct {
	Kind  VLKind
	Chars PString
	// FirstLine is the line number the VL started on, kept even though
	// Chars carries per-character positions, because an empty VL (a
	// blank line) has no characters to ask.
	FirstLine int
}

// vlineBuilder folds a source file's physical lines into virtual lines,
// lazily: each Scan() call consumes as many physical lines as a single
// continuation run requires. Grounded on strutil.go's concatline, which
// does the same backslash-newline collapse on a flat []byte; this
// generalizes it to carry position/hide information per character and to
// support the two folding modes §4.B distinguishes.
type vlineBuilder struct {
	filename     string
	lines        []string // physical lines, each WITHOUT trailing newline; CRLF already normalized
	i            int       // index of next unconsumed physical line
	recipePrefix byte
	cur          VirtualLine
}

func newVLineBuilder(filename string, physicalLines []string, recipePrefix byte) *vlineBuilder {
	if recipePrefix == 0 {
		recipePrefix = '\t'
	}
	return &vlineBuilder{filename: filename, lines: physicalLines, recipePrefix: recipePrefix}
}

// oddTrailingBackslashes counts the run of '\' immediately before the
// line's end and reports whether it is odd, i.e. an actual continuation
// rather than an escaped literal backslash.
func oddTrailingBackslashes(s string) (int, bool) {
	n := 0
	for n < len(s) && s[len(s)-1-n] == '\\' {
		n++
	}
	return n, n%2 == 1
}

// Scan advances to the next virtual line, folding continuations according
// to the current line's recipe-prefix status. Reports false at EOF.
func (b *vlineBuilder) Scan() bool {
	if b.i >= len(b.lines) {
		return false
	}
	firstLineNo := b.i + 1
	firstText := b.lines[b.i]
	kind := VLStatement
	if len(firstText) > 0 && firstText[0] == b.recipePrefix {
		kind = VLRecipe
	}

	var out PString
	lineno := firstLineNo
	text := firstText
	for {
		_, continues := oddTrailingBackslashes(text)
		if !continues || b.i+1 >= len(b.lines) {
			// continuation at EOF is accepted as a plain line end (§4.B).
			out = append(out, linePChars(b.filename, lineno, text, false)...)
			b.i++
			break
		}
		// strip the trailing backslash itself from the emitted text.
		body := text[:len(text)-1]
		if kind == VLStatement {
			// trailing whitespace right before the continuation folds away
			// too, matching strutil.go's concatline (trimRightSpaceBytes
			// before the join point).
			vis := len(body)
			for vis > 0 && isSpaceByte(body[vis-1]) {
				vis--
			}
			out = append(out, linePChars(b.filename, lineno, body[:vis], false)...)
			for k := vis; k < len(body); k++ {
				out = append(out, PChar{Pos: Position{b.filename, lineno, k + 1}, C: body[k], Hide: true})
			}
			// the fold point: one space standing in for \<nl>.
			out = append(out, PChar{Pos: Position{b.filename, lineno, len(body) + 1}, C: ' ', Hide: false})
		} else {
			// recipe mode: keep backslash and newline verbatim.
			out = append(out, linePChars(b.filename, lineno, text, false)...)
			out = append(out, PChar{Pos: Position{b.filename, lineno, len(text) + 1}, C: '\n', Hide: false})
		}
		b.i++
		lineno++
		text = b.lines[b.i]
		if kind == VLStatement {
			// leading whitespace of the continued line folds away too.
			j := 0
			for j < len(text) && isSpaceByte(text[j]) {
				j++
			}
			for k := 0; k < j; k++ {
				out = append(out, PChar{Pos: Position{b.filename, lineno, k + 1}, C: text[k], Hide: true})
			}
			text = text[j:]
		}
	}
	b.cur = VirtualLine{Kind: kind, Chars: out, FirstLine: firstLineNo}
	return true
}

func (b *vlineBuilder) Line() VirtualLine { return b.cur }

// lastLine is the physical line number this VL's last character came from,
// or FirstLine itself for an empty (blank) VL.
func (vl VirtualLine) lastLine() int {
	if len(vl.Chars) == 0 {
		return vl.FirstLine
	}
	return vl.Chars[len(vl.Chars)-1].Pos.Line
}

func linePChars(filename string, lineno int, s string, hide bool) PString {
	ps := make(PString, len(s))
	for i := 0; i < len(s); i++ {
		ps[i] = PChar{Pos: Position{filename, lineno, i + 1}, C: s[i], Hide: hide}
	}
	return ps
}

// BuildVirtualLines drains a vlineBuilder into a slice; most callers want
// random access (pushback across several VLs in the directive handler),
// so the statement/directive/recipe tokenizers consume this form rather
// than the lazy builder directly.
func BuildVirtualLines(filename string, physicalLines []string, recipePrefix byte) []VirtualLine {
	b := newVLineBuilder(filename, physicalLines, recipePrefix)
	var vls []VirtualLine
	for b.Scan() {
		vls = append(vls, b.Line())
	}
	return vls
}
