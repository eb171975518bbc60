package pipeline

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/shell"
)

// ErrArtifactMissing marks a collect failure where the boot image never
// appeared in the build output. Rerunning the compile stage is the remedy;
// other collect failures point at the filesystem instead.
var ErrArtifactMissing = eris.New("boot image missing from the build output")

// StageFailure reports which pipeline stage failed and the exit status of the
// external tool that caused it.
type StageFailure struct {
	Stage Stage
	// ExitCode is -1 when the failure didn't come from a command exit.
	ExitCode int

	cause error
}

func (f *StageFailure) Error() string {
	if f.ExitCode >= 0 {
		return fmt.Sprintf("%s stage failed with exit status %d", f.Stage, f.ExitCode)
	}

	return fmt.Sprintf("%s stage failed", f.Stage)
}

func (f *StageFailure) Unwrap() error {
	return f.cause
}

func failStage(stage Stage, err error) error {
	var failure *StageFailure
	if errors.As(err, &failure) {
		return err
	}

	return &StageFailure{Stage: stage, ExitCode: shell.ExitCode(err), cause: err}
}

// FailedStage reports which stage an error returned from Run belongs to.
func FailedStage(err error) (Stage, bool) {
	var failure *StageFailure
	if errors.As(err, &failure) {
		return failure.Stage, true
	}

	return "", false
}
