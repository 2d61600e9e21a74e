package makemk

import "testing"

func tok(t *testing.T, s string) stmtToken {
	t.Helper()
	return tokenizeStatementChars(NewPString(s, Position{Filename: "Makefile", Line: 1, Column: 1}), Position{Filename: "Makefile", Line: 1, Column: 1})
}

func TestTokenizeStatementBlank(t *testing.T) {
	for _, s := range []string{"", "   ", "# just a comment", "  # comment  "} {
		got := tok(t, s)
		if got.kind != stmtBlank {
			t.Errorf("tokenize(%q).kind = %v, want stmtBlank", s, got.kind)
		}
	}
}

func TestTokenizeStatementAssign(t *testing.T) {
	for _, tc := range []struct {
		in  string
		op  string
		lhs string
		rhs string
	}{
		{"FOO = bar", "=", "FOO", "bar"},
		{"FOO:=bar", ":=", "FOO", "bar"},
		{"FOO ::= bar", "::=", "FOO", "bar"},
		{"FOO += bar", "+=", "FOO", "bar"},
		{"FOO ?= bar", "?=", "FOO", "bar"},
		{"FOO != echo bar", "!=", "FOO", "echo bar"},
		{"FOO=bar # trailing comment", "=", "FOO", "bar"},
	} {
		got := tok(t, tc.in)
		if got.kind != stmtAssign {
			t.Fatalf("tokenize(%q).kind = %v, want stmtAssign", tc.in, got.kind)
		}
		if got.op != tc.op {
			t.Errorf("tokenize(%q).op = %q, want %q", tc.in, got.op, tc.op)
		}
		if got.lhs.String() != tc.lhs {
			t.Errorf("tokenize(%q).lhs = %q, want %q", tc.in, got.lhs.String(), tc.lhs)
		}
		if got.rhs.String() != tc.rhs {
			t.Errorf("tokenize(%q).rhs = %q, want %q", tc.in, got.rhs.String(), tc.rhs)
		}
	}
}

func TestTokenizeStatementRule(t *testing.T) {
	got := tok(t, "foo.o: foo.c foo.h")
	if got.kind != stmtRule {
		t.Fatalf("kind = %v, want stmtRule", got.kind)
	}
	if got.ruleLine.String() != "foo.o: foo.c foo.h" {
		t.Errorf("ruleLine = %q", got.ruleLine.String())
	}
	if got.semi != nil {
		t.Errorf("semi = %q, want nil", got.semi.String())
	}
}

func TestTokenizeStatementRuleDoubleColon(t *testing.T) {
	got := tok(t, "foo.o:: foo.c")
	if got.kind != stmtRule {
		t.Fatalf("kind = %v, want stmtRule", got.kind)
	}
	if got.ruleLine.String() != "foo.o:: foo.c" {
		t.Errorf("ruleLine = %q", got.ruleLine.String())
	}
}

func TestTokenizeStatementRuleWithSemi(t *testing.T) {
	got := tok(t, "all: dep ; echo hi")
	if got.kind != stmtRule {
		t.Fatalf("kind = %v, want stmtRule", got.kind)
	}
	if got.ruleLine.String() != "all: dep" {
		t.Errorf("ruleLine = %q, want %q", got.ruleLine.String(), "all: dep")
	}
	if got.semi == nil || got.semi.String() != "echo hi" {
		t.Errorf("semi = %v, want \"echo hi\"", got.semi)
	}
}

func TestTokenizeStatementRuleWithEmptySemiStaysNil(t *testing.T) {
	got := tok(t, "all: dep ;")
	if got.semi != nil {
		t.Errorf("semi = %q, want nil (not empty-but-non-nil)", got.semi.String())
	}
}

// A colon inside a $(...) reference on the LHS side must not be mistaken
// for the colon that starts a rule: skipDollarExpr swallows the whole
// reference, including its internal ':', as one opaque unit before the
// state machine ever sees the real top-level ':=' that follows it.
func TestTokenizeStatementColonInsideVarRefIgnored(t *testing.T) {
	got := tok(t, "$(dir a:b) := value")
	if got.kind != stmtAssign {
		t.Fatalf("kind = %v, want stmtAssign", got.kind)
	}
	if got.op != ":=" {
		t.Errorf("op = %q, want \":=\"", got.op)
	}
	if got.lhs.String() != "$(dir a:b)" {
		t.Errorf("lhs = %q, want %q", got.lhs.String(), "$(dir a:b)")
	}
	if got.rhs.String() != "value" {
		t.Errorf("rhs = %q, want %q", got.rhs.String(), "value")
	}
}

// A ':' that turns out not to start an assignment operator must rewind the
// scanner back to the colon itself (the pop_state-rewind behavior), not
// partway through whatever followed it.
func TestTokenizeStatementColonRewindsExactlyToRule(t *testing.T) {
	got := tok(t, "target: a b $(X)")
	if got.kind != stmtRule {
		t.Fatalf("kind = %v, want stmtRule", got.kind)
	}
	if got.ruleLine.String() != "target: a b $(X)" {
		t.Errorf("ruleLine = %q", got.ruleLine.String())
	}
}

func TestFindColonIdxAndFindEqIdxSkipVarRefs(t *testing.T) {
	line := NewPString("$(X): VAR=$(Y):z", Position{Filename: "Makefile", Line: 1, Column: 1})
	ci := findColonIdx(line)
	if ci < 0 || line[ci].C != ':' {
		t.Fatalf("findColonIdx returned %d, want index of the top-level ':'", ci)
	}
	rest := line[ci+1:]
	eqi := findEqIdx(rest)
	if eqi < 0 || rest[eqi].C != '=' {
		t.Fatalf("findEqIdx returned %d, want index of the top-level '='", eqi)
	}
	if got, want := rest[:eqi].String(), " VAR"; got != want {
		t.Errorf("lhs text = %q, want %q", got, want)
	}
}

func TestIsCompoundAssignLead(t *testing.T) {
	for _, c := range []byte{':', '+', '?', '!'} {
		if !isCompoundAssignLead(c) {
			t.Errorf("isCompoundAssignLead(%q) = false, want true", c)
		}
	}
	for _, c := range []byte{'a', ' ', '=', ';'} {
		if isCompoundAssignLead(c) {
			t.Errorf("isCompoundAssignLead(%q) = true, want false", c)
		}
	}
}
