package main

import (
	"errors"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// exitError carries a process exit code other than 1, such as a run whose
// jobs finished but failed.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
