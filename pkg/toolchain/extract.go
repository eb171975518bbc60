package toolchain

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// extract unpacks the downloaded archive into destPath, picking the format
// from the URL suffix.
func extract(archive *os.File, spec Spec, destPath string) error {
	switch {
	case strings.HasSuffix(spec.URL, ".zip"):
		return extractZip(archive, spec, destPath)
	case strings.HasSuffix(spec.URL, ".tar.gz"):
		reader, err := gzip.NewReader(archive)
		if err != nil {
			return eris.Wrap(err, "failed to open gzip stream")
		}
		defer reader.Close()
		return extractTar(reader, spec, destPath)
	case strings.HasSuffix(spec.URL, ".tar.bz2"):
		return extractTar(bzip2.NewReader(archive), spec, destPath)
	case strings.HasSuffix(spec.URL, ".tar.xz"):
		reader, err := xz.NewReader(archive)
		if err != nil {
			return eris.Wrap(err, "failed to open xz stream")
		}
		return extractTar(reader, spec, destPath)
	default:
		return eris.Errorf("archive format of %s is not supported", spec.URL)
	}
}

// entryDest strips the configured number of leading path elements and anchors
// the entry below destPath. Entries that strip away entirely return "".
func entryDest(destPath, item string, strip int) string {
	parts := strings.Split(filepath.Clean(filepath.FromSlash(item)), string(filepath.Separator))
	if len(parts) <= strip {
		return ""
	}

	return filepath.Join(destPath, filepath.Join(parts[strip:]...))
}

func writeEntry(dest string, mode os.FileMode, content io.Reader) error {
	err := os.MkdirAll(filepath.Dir(dest), 0770)
	if err != nil {
		return eris.Wrapf(err, "failed to create directory %s", filepath.Dir(dest))
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}

	_, err = io.Copy(out, content)
	if err != nil {
		out.Close()
		return eris.Wrapf(err, "failed to write %s", dest)
	}

	return out.Close()
}

func extractZip(archive *os.File, spec Spec, destPath string) error {
	stat, err := archive.Stat()
	if err != nil {
		return eris.Wrap(err, "failed to check download")
	}

	reader, err := zip.NewReader(archive, stat.Size())
	if err != nil {
		return eris.Wrap(err, "failed to open zip archive")
	}

	for _, item := range reader.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		dest := entryDest(destPath, item.Name, spec.Strip)
		if dest == "" {
			continue
		}

		content, err := item.Open()
		if err != nil {
			return eris.Wrapf(err, "failed to open archive entry %s", item.Name)
		}

		err = writeEntry(dest, item.Mode(), content)
		content.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func extractTar(r io.Reader, spec Spec, destPath string) error {
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return eris.Wrap(err, "failed to read archive entry")
		}

		info := item.FileInfo()
		if info.IsDir() {
			continue
		}

		dest := entryDest(destPath, item.Name, spec.Strip)
		if dest == "" {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			err = os.MkdirAll(filepath.Dir(dest), 0770)
			if err != nil {
				return eris.Wrapf(err, "failed to create directory %s", filepath.Dir(dest))
			}

			os.Remove(dest)
			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		err = writeEntry(dest, info.Mode(), archive)
		if err != nil {
			return err
		}
	}
}
