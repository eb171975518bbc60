// Package toolchain downloads, verifies and unpacks the cross toolchains a
// kernel build needs. The manifest (toolchains.yml) names each toolchain with
// a download URL, a sha256 checksum and extraction hints; a stamp file next to
// the extracted trees records what is already installed so unchanged entries
// are skipped.
package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// Spec describes one downloadable toolchain.
type Spec struct {
	// Condition restricts the entry to one platform, e.g. "linux-amd64".
	// Empty means every platform.
	Condition string `yaml:"if,omitempty"`
	URL       string
	Dest      string
	Sha256    string
	// Strip removes this many leading path elements from archive entries.
	Strip int
	// MarkExec lists files to chmod +x after extraction (zip archives don't
	// carry permissions).
	MarkExec []string `yaml:"markExec,omitempty"`
	// Version is recorded in the stamp file.
	Version string
	// Requires is a semver constraint checked against the installed stamp
	// version. A stamp that doesn't satisfy it forces a re-download.
	Requires string
}

// Manifest is the parsed toolchains.yml.
type Manifest struct {
	Toolchains map[string]Spec
}

// stamp records one installed toolchain: the URL#sha token it came from and
// its declared version.
type stamp struct {
	Token   string `json:"token"`
	Version string `json:"version"`
}

const stampsName = ".stamps.json"

// LoadManifest reads and parses a toolchain manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	var manifest Manifest
	err = yaml.Unmarshal(data, &manifest)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	return &manifest, nil
}

func loadStamps(dir string) (map[string]stamp, error) {
	stamps := map[string]stamp{}
	data, err := os.ReadFile(filepath.Join(dir, stampsName))
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return stamps, nil
		}
		return nil, eris.Wrapf(err, "failed to read stamps in %s", dir)
	}

	err = json.Unmarshal(data, &stamps)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse stamps in %s", dir)
	}
	return stamps, nil
}

func saveStamps(dir string, stamps map[string]stamp) error {
	data, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "failed to encode stamps")
	}

	err = os.WriteFile(filepath.Join(dir, stampsName), data, 0660)
	if err != nil {
		return eris.Wrapf(err, "failed to write stamps in %s", dir)
	}
	return nil
}

// upToDate reports whether the installed stamp still covers the spec.
func upToDate(spec Spec, installed stamp, destExists bool) bool {
	if !destExists || installed.Token != spec.URL+"#"+spec.Sha256 {
		return false
	}

	if spec.Requires == "" {
		return true
	}

	constraint, err := semver.NewConstraint(spec.Requires)
	if err != nil {
		return false
	}

	version, err := semver.NewVersion(installed.Version)
	if err != nil {
		return false
	}

	return constraint.Check(version)
}

func platformMatch(condition string) bool {
	return condition == "" || condition == runtime.GOOS+"-"+runtime.GOARCH
}

func progress(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// Fetch installs every manifest entry that applies to this platform and isn't
// already installed. With force set, stamps are ignored and everything is
// re-downloaded.
func Fetch(ctx context.Context, manifest *Manifest, dir string, force bool) error {
	err := os.MkdirAll(dir, 0770)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dir)
	}

	stamps, err := loadStamps(dir)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Minute}

	for name, spec := range manifest.Toolchains {
		if !platformMatch(spec.Condition) {
			term.Log(ctx).Debug().Msgf("Skipping %s (wrong platform)", name)
			continue
		}

		if spec.Sha256 == "" {
			return eris.Errorf("toolchain %s has no checksum", name)
		}

		destPath := filepath.Join(dir, spec.Dest)
		_, err := os.Stat(destPath)
		destExists := err == nil

		if !force && upToDate(spec, stamps[name], destExists) {
			term.Log(ctx).Debug().Msgf("Skipping %s (up to date)", name)
			continue
		}

		term.PrintTask(fmt.Sprintf("Fetching %s", name))
		err = install(ctx, client, name, spec, dir, destPath, destExists)
		if err != nil {
			return err
		}

		stamps[name] = stamp{Token: spec.URL + "#" + spec.Sha256, Version: spec.Version}
		if err := saveStamps(dir, stamps); err != nil {
			return err
		}
	}

	return nil
}

func install(ctx context.Context, client *http.Client, name string, spec Spec, dir, destPath string, destExists bool) error {
	term.PrintSubtask(spec.URL)

	archive, err := os.CreateTemp(dir, "fetch-*.tmp")
	if err != nil {
		return eris.Wrap(err, "failed to create download file")
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return eris.Wrapf(err, "failed to build request for %s", spec.URL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "failed to start download for %s", spec.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download of %s failed with status %s", spec.URL, resp.Status)
	}

	hash := sha256.New()
	bar := progress(resp.ContentLength, "     download")
	_, err = io.Copy(io.MultiWriter(archive, hash, bar), resp.Body)
	bar.Finish()
	if err != nil {
		return eris.Wrapf(err, "failed during download of %s", spec.URL)
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	if digest != spec.Sha256 {
		return eris.Errorf("checksum mismatch for %s: expected %s, got %s", name, spec.Sha256, digest)
	}

	if destExists {
		term.PrintSubtask(fmt.Sprintf("Removing old %s", destPath))
		err = os.RemoveAll(destPath)
		if err != nil {
			return eris.Wrapf(err, "failed to remove %s", destPath)
		}
	}

	_, err = archive.Seek(0, io.SeekStart)
	if err != nil {
		return eris.Wrap(err, "failed to rewind download")
	}

	err = extract(archive, spec, destPath)
	if err != nil {
		return err
	}

	for _, binPath := range spec.MarkExec {
		binPath = filepath.Join(destPath, binPath)
		info, err := os.Stat(binPath)
		if err != nil {
			return eris.Wrapf(err, "failed to read permissions for %s", binPath)
		}

		err = os.Chmod(binPath, info.Mode()|0700)
		if err != nil {
			return eris.Wrapf(err, "failed to mark %s as executable", binPath)
		}
	}

	return nil
}
