package pipeline

import (
	"context"
)

// Compile runs the two build sub-steps in order: generate the kernel
// configuration from the defconfig profile, then build with one job per CPU.
// No parallelism cap is applied beyond the job count.
func Compile(ctx context.Context, sh CommandRunner, cfg BuildConfig) error {
	if err := sh.Run(ctx, string(StageCompile), configScript(cfg)); err != nil {
		return failStage(StageCompile, err)
	}

	if err := sh.Run(ctx, string(StageCompile), buildScript(cfg)); err != nil {
		return failStage(StageCompile, err)
	}

	return nil
}
