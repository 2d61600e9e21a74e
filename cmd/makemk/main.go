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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/makesyms/makemk"
)

const version = "makemk 0.1"

var (
	makefileFlag string
	outputFlag   string
	sexprFlag    bool
	debugFlag    bool
	versionFlag  bool
)

func init() {
	flag.StringVar(&makefileFlag, "f", "", "Use FILE as a makefile.")
	flag.StringVar(&makefileFlag, "file", "", "Use FILE as a makefile.")
	flag.StringVar(&makefileFlag, "makefile", "", "Use FILE as a makefile.")
	flag.StringVar(&outputFlag, "o", "", "Write regenerated makefile text to FILE.")
	flag.StringVar(&outputFlag, "output", "", "Write regenerated makefile text to FILE.")
	flag.BoolVar(&sexprFlag, "S", false, "Print S-expression of the parsed tree to stdout.")
	flag.BoolVar(&debugFlag, "d", false, "Verbose logging.")
	flag.BoolVar(&debugFlag, "debug", false, "Verbose logging.")
	flag.BoolVar(&versionFlag, "v", false, "Print version.")
	flag.BoolVar(&versionFlag, "version", false, "Print version.")
	flag.BoolVar(&makemk.UseFindCache, "use_find_emulator", false, "Answer $(shell find ...) from an in-memory directory cache instead of forking.")
}

// splitArgs separates positional arguments into NAME=VALUE command-line
// variable assignments and build targets, the way make(1) does.
func splitArgs(args []string) (vars map[string]string, targets []string) {
	vars = make(map[string]string)
	for _, arg := range args {
		if i := strings.IndexByte(arg, '='); i > 0 {
			vars[arg[:i]] = arg[i+1:]
			continue
		}
		targets = append(targets, arg)
	}
	return vars, targets
}

func main() {
	flag.Parse()
	if versionFlag {
		fmt.Println(version)
		return
	}

	vars, targets := splitArgs(flag.Args())
	req := makemk.Request{
		Makefile:        makefileFlag,
		Targets:         targets,
		CommandLineVars: vars,
		Debug:           debugFlag,
	}

	result, err := makemk.Run(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		// http://www.gnu.org/software/make/manual/html_node/Running.html
		os.Exit(1)
	}

	if sexprFlag {
		fmt.Print(result.SExpr())
	}

	if outputFlag != "" {
		err := os.WriteFile(outputFlag, []byte(result.Render()), 0644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
