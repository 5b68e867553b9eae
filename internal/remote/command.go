package remote

import (
	"fmt"
	"strings"
)

// Result is what a remote command returned.
type Result struct {
	Command string
	Code    int
	Stdout  string
	Stderr  string
}

// OK reports whether the command exited zero.
func (r *Result) OK() bool {
	return r != nil && r.Code == 0
}

func (r *Result) String() string {
	if r == nil {
		return "<no result>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "code=%d", r.Code)
	if s := strings.TrimSpace(r.Stdout); s != "" {
		fmt.Fprintf(&b, " stdout=%q", s)
	}
	if s := strings.TrimSpace(r.Stderr); s != "" {
		fmt.Fprintf(&b, " stderr=%q", s)
	}
	return b.String()
}

// UnpackCommand returns the single compound command that extracts archive
// inside dir, overwriting existing files, then deletes the archive. The
// removal only runs if extraction succeeded.
func UnpackCommand(dir, archive string) string {
	return fmt.Sprintf("cd %s && unzip -o %s && rm -rf %s",
		quotePath(dir), ShellQuote(archive), ShellQuote(archive))
}

// quotePath is ShellQuote that leaves a leading "~/" for the remote shell
// to expand.
func quotePath(p string) string {
	if p == "~" {
		return p
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if rest == "" {
			return "~/"
		}
		return "~/" + ShellQuote(rest)
	}
	return ShellQuote(p)
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+:@%,=", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
