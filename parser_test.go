package makemk

import "testing"

func TestParseExprTerm(t *testing.T) {
	for _, tc := range []struct {
		in   string
		term string
		want string
		n    int
	}{
		{in: "foo)bar", term: ")", want: "foo", n: 3},
		{in: "foo", term: "", want: "foo", n: 3},
		{in: "a$(X)b", term: "", want: "a$(X)b", n: 6},
	} {
		var term []byte
		if tc.term != "" {
			term = []byte(tc.term)
		}
		v, n, err := parseExpr([]byte(tc.in), term, parseOp{})
		if err != nil {
			t.Errorf("parseExpr(%q, %q)=_, _, %v; want nil error", tc.in, tc.term, err)
			continue
		}
		if got := v.String(); got != tc.want {
			t.Errorf("parseExpr(%q, %q)=%q, _, _; want %q, _, _", tc.in, tc.term, got, tc.want)
		}
		if n != tc.n {
			t.Errorf("parseExpr(%q, %q)=_, %d, _; want _, %d, _", tc.in, tc.term, n, tc.n)
		}
	}
}

func TestParseExprUnterminated(t *testing.T) {
	_, _, err := parseExpr([]byte("foo"), []byte(")"), parseOp{})
	if err == nil {
		t.Errorf("parseExpr with required terminator and none present: got nil error, want error")
	}
}

// parseMaybeRule's "target: VAR = val" nested-assignment detection, which
// tokenizer.go's findColonIdx/findEqIdx/isCompoundAssignLead feed.
func TestParseMaybeRuleTargetSpecificAssign(t *testing.T) {
	mk, err := parseMakefileString("foo.o: CFLAGS += -g\n", srcpos{filename: "Makefile"})
	if err != nil {
		t.Fatalf("parseMakefileString: %v", err)
	}
	if len(mk.stmts) != 1 {
		t.Fatalf("len(stmts) = %d, want 1", len(mk.stmts))
	}
	rast, ok := mk.stmts[0].(*maybeRuleAST)
	if !ok {
		t.Fatalf("stmts[0] = %T, want *maybeRuleAST", mk.stmts[0])
	}
	if rast.assign == nil {
		t.Fatalf("assign = nil, want non-nil target-specific assign")
	}
	if got, want := rast.assign.lhs.String(), "CFLAGS"; got != want {
		t.Errorf("assign.lhs = %q, want %q", got, want)
	}
	if got, want := rast.assign.op, "+="; got != want {
		t.Errorf("assign.op = %q, want %q", got, want)
	}
	if got, want := rast.assign.rhs.String(), "-g"; got != want {
		t.Errorf("assign.rhs = %q, want %q", got, want)
	}
}

func TestParseMaybeRuleWithInlineSemicolon(t *testing.T) {
	mk, err := parseMakefileString("all: dep1 dep2; echo hi\n", srcpos{filename: "Makefile"})
	if err != nil {
		t.Fatalf("parseMakefileString: %v", err)
	}
	rast, ok := mk.stmts[0].(*maybeRuleAST)
	if !ok {
		t.Fatalf("stmts[0] = %T, want *maybeRuleAST", mk.stmts[0])
	}
	if rast.assign != nil {
		t.Fatalf("assign = %#v, want nil", rast.assign)
	}
	if got, want := rast.expr.String(), "all: dep1 dep2"; got != want {
		t.Errorf("expr = %q, want %q", got, want)
	}
	if rast.semi == nil {
		t.Fatalf("semi = nil, want non-nil")
	}
	if got, want := string(rast.semi), "echo hi"; got != want {
		t.Errorf("semi = %q, want %q", got, want)
	}
}

func TestParseAssignTopLevel(t *testing.T) {
	for _, tc := range []struct {
		in     string
		op     string
		lhs    string
		rhs    string
	}{
		{in: "FOO = bar\n", op: "=", lhs: "FOO", rhs: "bar"},
		{in: "FOO := bar\n", op: ":=", lhs: "FOO", rhs: "bar"},
		{in: "FOO ::= bar\n", op: "::=", lhs: "FOO", rhs: "bar"},
		{in: "FOO += bar\n", op: "+=", lhs: "FOO", rhs: "bar"},
		{in: "FOO ?= bar\n", op: "?=", lhs: "FOO", rhs: "bar"},
		{in: "FOO != echo bar\n", op: "!=", lhs: "FOO", rhs: "echo bar"},
	} {
		mk, err := parseMakefileString(tc.in, srcpos{filename: "Makefile"})
		if err != nil {
			t.Errorf("parseMakefileString(%q): %v", tc.in, err)
			continue
		}
		aast, ok := mk.stmts[0].(*assignAST)
		if !ok {
			t.Errorf("parseMakefileString(%q): stmts[0] = %T, want *assignAST", tc.in, mk.stmts[0])
			continue
		}
		if got := aast.op; got != tc.op {
			t.Errorf("parseMakefileString(%q): op = %q, want %q", tc.in, got, tc.op)
		}
		if got := aast.lhs.String(); got != tc.lhs {
			t.Errorf("parseMakefileString(%q): lhs = %q, want %q", tc.in, got, tc.lhs)
		}
		if got := aast.rhs.String(); got != tc.rhs {
			t.Errorf("parseMakefileString(%q): rhs = %q, want %q", tc.in, got, tc.rhs)
		}
	}
}
