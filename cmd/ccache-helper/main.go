// ccache-helper is a tiny compiler shim: it runs the compiler named by
// REAL_CC through ccache with the arguments it was called with and passes the
// child's exit code through. Point CC (or the cross-compile wrapper) at this
// binary to get transparent caching.
package main

import (
	"errors"
	"os"
	"os/exec"
)

func main() {
	compiler := os.Getenv("REAL_CC")
	if compiler == "" {
		compiler = "gcc"
	}

	cmd := exec.Command("ccache")
	cmd.Args = append([]string{"ccache", compiler}, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}

		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
