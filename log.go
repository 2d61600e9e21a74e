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

	"github.com/golang/glog"
)

// Logf traces parser/evaluator internals. Call sites are sprinkled through
// the tokenizer, directive handler and evaluator, gated behind a verbosity
// level instead of a bespoke flag.
func Logf(format string, a ...interface{}) {
	glog.V(1).Infof(format, a...)
}

// Warnf reports a non-fatal diagnostic at pos: the warning channel of the
// error taxonomy. Printed to stderr as "filename:row: msg"; execution
// continues.
func Warnf(pos Position, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(os.Stderr, "%s:%d: %s\n", pos.Filename, pos.Line, msg)
	glog.Warningf("%s: %s", pos, msg)
}

// warn reports "filename:line: warning: msg" for a non-fatal evaluation
// diagnostic, e.g. a makefile re-read after modification.
func warn(pos srcpos, format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s: warning: %s\n", pos, fmt.Sprintf(format, a...))
	glog.Warningf("%s: %s", pos, fmt.Sprintf(format, a...))
}

// warnNoPrefix is warn without the "warning:" tag, used where the message
// already states what's wrong (an invalid directive, trailing text).
func warnNoPrefix(pos srcpos, format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", pos, fmt.Sprintf(format, a...))
	glog.Warningf("%s: %s", pos, fmt.Sprintf(format, a...))
}

// errorAt returns an error whose message has this prefix:
// *** filename="…" pos=(r,c): msg
func errorAt(pos Position, format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	return fmt.Errorf("*** filename=%q pos=(%d,%d): %s", pos.Filename, pos.Line, pos.Column, msg)
}
