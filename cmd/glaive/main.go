package main

import (
	"errors"
	"os"

	"github.com/ktada/glaive/driver"
	verr "github.com/ktada/glaive/error"
	"github.com/ktada/glaive/grammar"
)

func main() {
	os.Exit(run())
}

// Exit codes: 0 on success, 1 on a parse error, 2 on a grammar or table
// error, 3 on usage errors and everything else.
func run() int {
	err := Execute()
	if err == nil {
		return 0
	}

	var parseErr *driver.ParseError
	var disambigErr *driver.DisambiguationError
	var cancelErr *driver.CancelledError
	if errors.As(err, &parseErr) || errors.As(err, &disambigErr) || errors.As(err, &cancelErr) {
		return 1
	}

	var specErrs verr.SpecErrors
	var specErr *verr.SpecError
	var conflictErr *grammar.TableConflictError
	if errors.As(err, &specErrs) || errors.As(err, &specErr) || errors.As(err, &conflictErr) {
		return 2
	}

	return 3
}
