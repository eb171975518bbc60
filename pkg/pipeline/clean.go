package pipeline

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/shell"
	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// Clean removes stale boot images from the staging directory, then has the
// build system discard all compiled objects and regenerate a pristine source
// tree. The deletions are irreversible. The caller must not continue to the
// compile stage when Clean fails.
func Clean(ctx context.Context, sh CommandRunner, cfg BuildConfig, paths PathSet) error {
	matches, err := shell.Glob(paths.Staging, []string{cfg.Image + "*"})
	if err != nil {
		return failStage(StageClean, err)
	}

	for _, match := range matches {
		term.Log(ctx).Info().
			Str("stage", string(StageClean)).
			Msgf("Removing stale %s", match)

		if err := os.Remove(match); err != nil {
			return failStage(StageClean, eris.Wrapf(err, "failed to remove stale image %s", match))
		}
	}

	if err := sh.Run(ctx, string(StageClean), cleanScript(cfg)); err != nil {
		return failStage(StageClean, err)
	}

	return nil
}
