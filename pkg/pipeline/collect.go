package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// Collect copies the compiled boot image from the build output tree into the
// staging directory. A missing image is reported as ErrArtifactMissing so
// callers can tell "rerun the compile" apart from filesystem trouble.
func Collect(ctx context.Context, cfg BuildConfig, paths PathSet) error {
	src := cfg.BootImage(paths)
	info, err := os.Stat(src)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return failStage(StageCollect, eris.Wrapf(ErrArtifactMissing, "expected %s", src))
		}

		return failStage(StageCollect, eris.Wrapf(err, "failed to check %s", src))
	}

	if err := os.MkdirAll(paths.Staging, 0700); err != nil {
		return failStage(StageCollect, eris.Wrapf(err, "failed to create %s", paths.Staging))
	}

	dest := filepath.Join(paths.Staging, cfg.Image)
	term.Log(ctx).Info().
		Str("stage", string(StageCollect)).
		Msgf("Copying %s to %s", src, dest)

	if err := copyFile(src, dest, info.Mode()); err != nil {
		return failStage(StageCollect, err)
	}

	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()
		return eris.Wrapf(err, "failed to copy %s to %s", src, dest)
	}

	return out.Close()
}
