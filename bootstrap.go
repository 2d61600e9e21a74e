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
	"path/filepath"
	"strings"
)

// variablesVar backs the ".VARIABLES" entry: a read-only snapshot of every
// variable name currently bound, space separated, computed on demand
// instead of kept in sync on every assignment.
type variablesVar struct {
	ev *Evaluator
}

func (v variablesVar) Flavor() string  { return "simple" }
func (v variablesVar) Origin() string  { return "default" }
func (v variablesVar) IsDefined() bool { return true }

func (v variablesVar) String() string {
	names := make([]string, 0, len(v.ev.outVars))
	for name := range v.ev.outVars {
		names = append(names, name)
	}
	return strings.Join(names, " ")
}

func (v variablesVar) Eval(w evalWriter, ev *Evaluator) error {
	_, err := w.Write([]byte(v.String()))
	return err
}

func (v variablesVar) Append(ev *Evaluator, s string) (Var, error) {
	return v, nil
}

func (v variablesVar) AppendVar(ev *Evaluator, val Value) (Var, error) {
	return v, nil
}

// bootstrapMakefile builds the synthetic makefile of default variables and
// suffix rules every evaluation starts from: MAKE_VERSION, SHELL, the
// implicit .c.o/.cc.o rules, and the goal-derived MAKECMDGOALS/CURDIR.
func bootstrapMakefile(targets []string) (makefile, error) {
	bootstrap := `
CC?=cc
CXX?=g++
AR?=ar
MAKE?=make
# Pretend to be GNU make 4.3 for compatibility with makefiles that guard
# features behind MAKE_VERSION checks.
MAKE_VERSION?=4.3
SHELL=/bin/sh

# http://www.gnu.org/software/make/manual/make.html#Catalogue-of-Rules
.c.o:
	$(CC) $(CFLAGS) $(CPPFLAGS) $(TARGET_ARCH) -c -o $@ $<
.cc.o:
	$(CXX) $(CXXFLAGS) $(CPPFLAGS) $(TARGET_ARCH) -c -o $@ $<
`
	bootstrap += fmt.Sprintf("MAKECMDGOALS:=%s\n", strings.Join(targets, " "))
	cwd, err := filepath.Abs(".")
	if err != nil {
		return makefile{}, err
	}
	bootstrap += fmt.Sprintf("CURDIR:=%s\n", cwd)
	return parseMakefileString(bootstrap, srcpos{bootstrapMakefileName, 0})
}

// bindBuiltinVars installs the callback-backed entries (".VARIABLES") that
// can't be expressed as plain makefile text since they read the
// Evaluator's live state.
func bindBuiltinVars(ev *Evaluator) {
	ev.outVars.Assign(".VARIABLES", variablesVar{ev: ev})
}
