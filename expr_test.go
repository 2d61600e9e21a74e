package makemk

import "testing"

func TestParseExprValues(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{in: "foo", want: "foo"},
		{in: "(foo)", want: "(foo)"},
		{in: "{foo}", want: "{foo}"},
		{in: "$$", want: "$"},
		{in: "foo$$bar", want: "foo$bar"},
		{in: "$foo", want: "$foo"},
		{in: "$(foo)", want: "$(foo)"},
		{in: "$(foo:.c=.o)", want: "$(foo:.c=.o)"},
		{in: "$(subst $(space),$(,),$(foo))/bar", want: "$(subst $(space),$(,),$(foo))/bar"},
	} {
		v, n, err := parseExpr([]byte(tc.in), nil, parseOp{matchParen: true})
		if err != nil {
			t.Errorf("parseExpr(%q)=_, _, %v; want nil error", tc.in, err)
			continue
		}
		if n != len(tc.in) {
			t.Errorf("parseExpr(%q) consumed %d bytes, want %d", tc.in, n, len(tc.in))
		}
		if got := v.String(); got != tc.want {
			t.Errorf("parseExpr(%q).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseExprSubstitutionReference(t *testing.T) {
	v, _, err := parseExpr([]byte("$(foo:.c=.o)"), nil, parseOp{matchParen: true})
	if err != nil {
		t.Fatalf("parseExpr: %v", err)
	}
	vs, ok := v.(varsubst)
	if !ok {
		t.Fatalf("parseExpr(%q) = %T, want varsubst", "$(foo:.c=.o)", v)
	}
	if got, want := vs.varname.String(), "foo"; got != want {
		t.Errorf("varname = %q, want %q", got, want)
	}
	if got, want := vs.pat.String(), ".c"; got != want {
		t.Errorf("pat = %q, want %q", got, want)
	}
	if got, want := vs.subst.String(), ".o"; got != want {
		t.Errorf("subst = %q, want %q", got, want)
	}
}

func TestParseExprNestedFuncCall(t *testing.T) {
	v, _, err := parseExpr([]byte("$(subst a,b,$(foo))"), nil, parseOp{matchParen: true})
	if err != nil {
		t.Fatalf("parseExpr: %v", err)
	}
	f, ok := v.(*funcSubst)
	if !ok {
		t.Fatalf("parseExpr(%q) = %T, want *funcSubst", "$(subst a,b,$(foo))", v)
	}
	if got, want := len(f.args), 4; got != want { // args[0] is the func name itself
		t.Fatalf("len(args) = %d, want %d", got, want)
	}
	if got, want := f.args[3].String(), "$(foo)"; got != want {
		t.Errorf("args[3] = %q, want %q", got, want)
	}
}
