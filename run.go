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
	"fmt"
	"os"
	"strings"
)

// Request is the input to a single parse+evaluate run: which makefile to
// read, the targets/variable overrides the command line supplied, and
// whether to run verbose.
type Request struct {
	Makefile        string
	Targets         []string
	CommandLineVars map[string]string
	Debug           bool
}

// Result is a finished evaluation. The source loader, CLI argument parsing,
// recipe executor, and output formatters are external collaborators (§6);
// Result exposes just what those need: the resolved variables and the
// parsed statement tree, via SExpr/Render below.
type Result struct {
	Vars Vars
	mk   makefile
}

// Run parses filename (bootstrapping default variables and suffix rules
// first) and evaluates it, honoring command-line variable assignments
// (origin "command line", which outranks a subsequent file assignment of
// the same name) and environment import (origin "environment").
func Run(req Request) (*Result, error) {
	if req.Debug {
		LogFlag = true
	}
	filename := req.Makefile
	if filename == "" {
		var err error
		filename, err = defaultMakefile()
		if err != nil {
			return nil, err
		}
	}

	vars := make(Vars)
	for _, e := range os.Environ() {
		i := strings.IndexByte(e, '=')
		if i < 0 {
			continue
		}
		vars.Assign(e[:i], &simpleVar{value: []string{e[i+1:]}, origin: "environment"})
	}
	for name, val := range req.CommandLineVars {
		vars.Assign(name, &simpleVar{value: []string{val}, origin: "command line"})
	}

	ev := NewEvaluator(vars)
	bindBuiltinVars(ev)

	bf, err := bootstrapMakefile(req.Targets)
	if err != nil {
		return nil, err
	}
	err = ev.evalIncludeFile(bf.filename, bf)
	if err != nil {
		return nil, err
	}

	mk, _, err := makefileCache.parse(filename)
	if err != nil {
		return nil, err
	}
	err = ev.evalIncludeFile(filename, mk)
	if err != nil {
		return nil, err
	}
	return &Result{Vars: ev.outVars, mk: mk}, nil
}

// SExpr renders the parsed statement tree as a parenthesized S-expression,
// one top-level form per statement. This is a debug dump (the `-S` flag),
// not a reparsable serialization.
func (r *Result) SExpr() string {
	var b strings.Builder
	for _, stmt := range r.mk.stmts {
		fmt.Fprintf(&b, "(%s)\n", sexprStmt(stmt))
	}
	return b.String()
}

func sexprStmt(stmt ast) string {
	switch v := stmt.(type) {
	case *assignAST:
		return fmt.Sprintf("assign %s %s %s", v.lhs, v.op, v.rhs)
	case *maybeRuleAST:
		return fmt.Sprintf("rule %s", v.expr)
	case *commandAST:
		return fmt.Sprintf("command %q", v.cmd)
	case *includeAST:
		return fmt.Sprintf("include %s %s", v.op, v.expr)
	case *ifAST:
		return fmt.Sprintf("if %s %s %s", v.op, v.lhs, v.rhs)
	case *exportAST:
		return fmt.Sprintf("export %v %s", v.export, v.expr)
	case *undefineAST:
		return fmt.Sprintf("undefine %s", v.expr)
	case *vpathAST:
		return fmt.Sprintf("vpath %s", v.expr)
	default:
		return fmt.Sprintf("%T", stmt)
	}
}

// Render reconstructs makefile source text from the parsed tree (the `-o`
// flag's regenerator collaborator).
func (r *Result) Render() string {
	var b strings.Builder
	for _, stmt := range r.mk.stmts {
		b.WriteString(stmt.render())
		b.WriteByte('\n')
	}
	return b.String()
}
