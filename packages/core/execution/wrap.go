package execution

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Wrapper rewrites a program invocation before it is spawned
type Wrapper func(program string, args []string) (string, []string)

// Wrappers maps a program name to the wrapper applied to it.
// Lookup uses the base name, so "/usr/bin/xcodebuild" matches "xcodebuild".
type Wrappers map[string]Wrapper

// PTYPrograms fully buffer their output when stdout is a pipe, hiding
// progress during long silent phases. They are run under a pseudo-terminal.
var PTYPrograms = []string{"xcodebuild", "swift"}

// DefaultWrappers returns the wrapping table for PTYPrograms on this OS
func DefaultWrappers() Wrappers {
	return PTYWrappers(PTYPrograms...)
}

// PTYWrappers returns a table that runs each of programs through script(1)
func PTYWrappers(programs ...string) Wrappers {
	w := make(Wrappers, len(programs))
	wrap := ScriptWrapper(runtime.GOOS)
	for _, p := range programs {
		w[p] = wrap
	}
	return w
}

// Resolve returns the program and arguments that should actually be spawned
func (w Wrappers) Resolve(program string, args []string) (string, []string) {
	if wrap, ok := w[filepath.Base(program)]; ok && wrap != nil {
		return wrap(program, args)
	}
	return program, args
}

// ScriptWrapper returns a wrapper that re-execs the program through script(1)
// so the child sees an interactive terminal and flushes per line. Killing
// script closes the terminal, which takes the wrapped program down with it.
func ScriptWrapper(goos string) Wrapper {
	switch goos {
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		// BSD: script [-q] file [command ...]
		return func(program string, args []string) (string, []string) {
			wrapped := make([]string, 0, len(args)+4)
			wrapped = append(wrapped, "-q", "/dev/null", "--", program)
			wrapped = append(wrapped, args...)
			return "script", wrapped
		}
	default:
		// util-linux: script -q -e -c 'command' file
		return func(program string, args []string) (string, []string) {
			return "script", []string{"-q", "-e", "-c", shellJoin(program, args), "/dev/null"}
		}
	}
}

func shellJoin(program string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(program))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
