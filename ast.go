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

import (
	"bytes"
	"fmt"
	"strings"
)

// ast is one statement of a parsed makefile: an assignment, a rule, a
// recipe command line, a directive. Each node's eval is the Evaluator
// driver's entry point (§4.J); render reconstructs makefile source text.
type ast interface {
	eval(*Evaluator) error
	render() string
}

// assignAST is "lhs op rhs", possibly qualified by override/export/private.
type assignAST struct {
	srcpos
	lhs     Value
	rhs     Value
	op      string // "=", ":=", "::=", "?=", "+=", "!="
	opt     string // "", "override", "export"
	private bool
}

func (ast *assignAST) eval(ev *Evaluator) error { return ev.evalAssign(ast) }

func (ast *assignAST) render() string {
	prefix := ""
	switch ast.opt {
	case "override":
		prefix = "override "
	case "export":
		prefix = "export "
	}
	if ast.private {
		prefix = "private " + prefix
	}
	return fmt.Sprintf("%s%s %s %s", prefix, ast.lhs, ast.op, ast.rhs)
}

// evalRHS builds the Var the RHS denotes, honoring assignment-flavor
// semantics (recursive for "=", immediate for ":="/"::=", conditional for
// "?=", append for "+=", shell-capture for "!=") and origin precedence.
func (ast *assignAST) evalRHS(ev *Evaluator, lhs string) (Var, error) {
	origin := "file"
	if ast.filename == bootstrapMakefileName {
		origin = "default"
	}
	if ast.opt == "override" {
		origin = "override"
	}
	switch ast.op {
	case ":=", "::=":
		switch v := ast.rhs.(type) {
		case literal:
			return &simpleVar{value: []string{v.String()}, origin: origin}, nil
		case tmpval:
			return &simpleVar{value: []string{v.String()}, origin: origin}, nil
		default:
			buf := newEbuf()
			err := v.Eval(buf, ev)
			if err != nil {
				return nil, err
			}
			s := buf.String()
			buf.release()
			return &simpleVar{value: []string{s}, origin: origin}, nil
		}
	case "!=":
		buf := newEbuf()
		err := ast.rhs.Eval(buf, ev)
		if err != nil {
			return nil, err
		}
		cmd := buf.String()
		buf.release()
		out, err := ev.runShell(cmd)
		if err != nil {
			return nil, ast.error(err)
		}
		return &recursiveVar{expr: literal(out), origin: origin}, nil
	case "=":
		return &recursiveVar{expr: ast.rhs, origin: origin}, nil
	case "+=":
		prev := ev.lookupVarInCurrentScope(lhs)
		if !prev.IsDefined() {
			return &recursiveVar{expr: ast.rhs, origin: origin}, nil
		}
		return prev.AppendVar(ev, ast.rhs)
	case "?=":
		prev := ev.lookupVarInCurrentScope(lhs)
		if prev.IsDefined() {
			return prev, nil
		}
		return &recursiveVar{expr: ast.rhs, origin: origin}, nil
	default:
		return nil, ast.errorf("unknown assign op: %q", ast.op)
	}
}

// maybeRuleAST is a line that parses as a rule only once its variables are
// expanded: the statement tokenizer cannot tell a rule from a target
// specific assignment until expansion reveals whether ':' or '=' wins.
type maybeRuleAST struct {
	srcpos
	isRule bool
	expr   Value
	assign *assignAST // non-nil if this is known to be "target: VAR=val"
	semi   []byte     // text after an inline ';', not yet parsed
}

func (ast *maybeRuleAST) eval(ev *Evaluator) error { return ev.evalMaybeRule(ast) }

func (ast *maybeRuleAST) render() string { return ast.expr.String() }

// commandAST is one recipe line.
type commandAST struct {
	srcpos
	cmd string
}

func (ast *commandAST) eval(ev *Evaluator) error { return ev.evalCommand(ast) }

func (ast *commandAST) render() string {
	return "\t" + strings.Replace(ast.cmd, "\n", `\n`, -1)
}

// includeAST is include/-include/sinclude.
type includeAST struct {
	srcpos
	expr string
	op   string
}

func (ast *includeAST) eval(ev *Evaluator) error { return ev.evalInclude(ast) }

func (ast *includeAST) render() string { return ast.op + " " + ast.expr }

// ifAST is a conditional block: ifeq/ifneq/ifdef/ifndef with its true and
// false statement lists. The statements of both arms are parsed when the
// file is read, so a syntax error in the arm that is not taken is still
// reported. evalIf just walks the stmt list its op picked; it never
// re-parses.
type ifAST struct {
	srcpos
	op         string
	lhs        Value
	rhs        Value
	trueStmts  []ast
	falseStmts []ast
}

func (ast *ifAST) eval(ev *Evaluator) error { return ev.evalIf(ast) }

func (ast *ifAST) render() string {
	var b bytes.Buffer
	switch ast.op {
	case "ifeq", "ifneq":
		fmt.Fprintf(&b, "%s (%s,%s)\n", ast.op, ast.lhs, ast.rhs)
	default:
		fmt.Fprintf(&b, "%s %s\n", ast.op, ast.lhs)
	}
	for _, s := range ast.trueStmts {
		b.WriteString(s.render())
		b.WriteByte('\n')
	}
	if len(ast.falseStmts) > 0 {
		b.WriteString("else\n")
		for _, s := range ast.falseStmts {
			b.WriteString(s.render())
			b.WriteByte('\n')
		}
	}
	b.WriteString("endif")
	return b.String()
}

// exportAST is export/unexport, with or without an accompanying assignment.
type exportAST struct {
	srcpos
	expr     []byte
	hasEqual bool
	export   bool
}

func (ast *exportAST) eval(ev *Evaluator) error { return ev.evalExport(ast) }

func (ast *exportAST) render() string {
	kw := "unexport"
	if ast.export {
		kw = "export"
	}
	return kw + " " + string(ast.expr)
}

// vpathAST is the vpath directive: register, query, or clear a VPATH-style
// search pattern.
type vpathAST struct {
	srcpos
	expr Value
}

func (ast *vpathAST) eval(ev *Evaluator) error { return ev.evalVpath(ast) }

// undefineAST is the undefine directive: it removes a variable's entry
// entirely, distinct from assigning it the empty string (origin() reports
// "undefined" afterward, not "file").
type undefineAST struct {
	srcpos
	expr []byte
}

func (ast *undefineAST) eval(ev *Evaluator) error { return ev.evalUndefine(ast) }

func (ast *undefineAST) render() string { return "undefine " + string(ast.expr) }

func (ast *vpathAST) render() string { return "vpath " + ast.expr.String() }
