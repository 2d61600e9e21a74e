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

// Package-level evaluation switches. cmd/makemk binds these to flag.*Var so
// command-line flags and library defaults share one set of names, the way
// the teacher's main.go binds katiLogFlag/useWildcardCache/etc.
var (
	// LogFlag turns on the extra Logf tracing in $(call) and in assignments
	// compacted by $(eval); Logf output also needs glog verbosity 1.
	LogFlag bool

	// EvalStatsFlag turns on the stats/traceEvent bookkeeping DumpStats reports.
	EvalStatsFlag bool

	// UseWildcardCache is not read anywhere in the package; $(wildcard)
	// always globs through the fsCache directory cache.
	UseWildcardCache = true

	// UseFindCache and UseShellBuiltins let $(shell find ...) and other
	// recognized shell idioms resolve natively instead of forking a shell.
	UseFindCache     bool
	UseShellBuiltins = true

	// IgnoreOptionalInclude is a make %-pattern: a file named by -include
	// that matches it is skipped without being read, whether or not it exists.
	IgnoreOptionalInclude string
)

// bootstrapMakefileName is the synthetic filename default variables (MAKE,
// SHELL, MAKE_VERSION, ...) are assigned under, so their origin reads
// "default" rather than "file".
const bootstrapMakefileName = "*bootstrap*"
