package pipeline

import (
	"archive/zip"
	"compress/flate"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// Package recursively archives everything in the staging directory into the
// run's zip with maximum compression, then moves the archive into the
// distribution directory and returns its final path. Archives from earlier
// runs are never removed.
func Package(ctx context.Context, paths PathSet, id ReleaseIdentity) (string, error) {
	archive := filepath.Join(paths.Staging, id.Archive)
	if err := writeZip(ctx, archive, paths.Staging); err != nil {
		os.Remove(archive)
		return "", failStage(StagePackage, err)
	}

	if err := os.MkdirAll(paths.Dist, 0700); err != nil {
		return "", failStage(StagePackage, eris.Wrapf(err, "failed to create %s", paths.Dist))
	}

	dest := filepath.Join(paths.Dist, id.Archive)
	if err := moveFile(archive, dest); err != nil {
		return "", failStage(StagePackage, err)
	}

	return dest, nil
}

func writeZip(ctx context.Context, dest, dir string) error {
	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}

	writer := zip.NewWriter(out)
	writer.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	count := 0
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// the archive is assembled inside the directory it packs
		if path == dest || info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return eris.Wrapf(err, "failed to resolve %s", path)
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return eris.Wrapf(err, "failed to build header for %s", path)
		}

		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		entry, err := writer.CreateHeader(hdr)
		if err != nil {
			return eris.Wrapf(err, "failed to add %s", rel)
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", path)
		}

		_, err = io.Copy(entry, f)
		f.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to pack %s", rel)
		}

		count++
		return nil
	})
	if err != nil {
		writer.Close()
		out.Close()
		return err
	}

	if err := writer.Close(); err != nil {
		out.Close()
		return eris.Wrapf(err, "failed to finalize %s", dest)
	}

	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "failed to finalize %s", dest)
	}

	term.Log(ctx).Info().
		Str("stage", string(StagePackage)).
		Msgf("Packed %d files into %s", count, filepath.Base(dest))

	return nil
}

func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	// staging and distribution can live on different filesystems
	info, statErr := os.Stat(src)
	if statErr != nil {
		return eris.Wrapf(err, "failed to move %s to %s", src, dest)
	}

	if copyErr := copyFile(src, dest, info.Mode()); copyErr != nil {
		return eris.Wrapf(copyErr, "failed to move %s to %s", src, dest)
	}

	return os.Remove(src)
}
