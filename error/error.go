package error

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// SpecError is an error positioned in a grammar source. When the source text
// or a file path is available, the message carries an excerpt of the
// offending line.
type SpecError struct {
	Cause      error
	Detail     string
	FilePath   string
	Source     []byte
	SourceName string
	Row        int
	Col        int
}

func (e *SpecError) Error() string {
	var b strings.Builder
	if e.SourceName != "" {
		fmt.Fprintf(&b, "%v: ", e.SourceName)
	}
	if e.Row != 0 {
		fmt.Fprintf(&b, "%v:%v: ", e.Row, e.Col)
	}
	fmt.Fprintf(&b, "error: %v", e.Cause)
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %v", e.Detail)
	}

	line := e.line()
	if line != "" {
		fmt.Fprintf(&b, "\n    %v", line)
	}

	return b.String()
}

func (e *SpecError) Unwrap() error {
	return e.Cause
}

func (e *SpecError) line() string {
	if e.Row <= 0 {
		return ""
	}
	if len(e.Source) > 0 {
		return scanLine(bufio.NewScanner(bytes.NewReader(e.Source)), e.Row)
	}
	if e.FilePath == "" {
		return ""
	}
	f, err := os.Open(e.FilePath)
	if err != nil {
		return ""
	}
	defer f.Close()
	return scanLine(bufio.NewScanner(f), e.Row)
}

func scanLine(s *bufio.Scanner, row int) string {
	i := 1
	for s.Scan() {
		if i == row {
			return s.Text()
		}
		i++
	}
	return ""
}

// SpecErrors aggregates all errors found in one pass over a grammar source
// so a user sees every problem at once.
type SpecErrors []*SpecError

func (e SpecErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%v", e[0])
	for _, err := range e[1:] {
		fmt.Fprintf(&b, "\n%v", err)
	}
	return b.String()
}
