// Package subtree vendors out-of-tree kernel module repositories (KernelSU
// and friends) into a path prefix of the kernel tree via git read-tree.
//
// The import is a deliberate two-phase protocol: when the prefix already
// exists it is only deleted and the operator is told to commit the removal
// before re-running. The manual checkpoint keeps uncommitted local changes to
// the vendored tree from being silently replaced.
package subtree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// Spec describes one vendored tree.
type Spec struct {
	// Name is the manifest key; filled in by Load.
	Name string `yaml:"-"`
	// Remote is the git remote name. Defaults to Name.
	Remote string
	URL    string
	// Branch defaults to main.
	Branch string
	// Prefix is the path the tree is imported at, relative to the kernel
	// source root, with forward slashes.
	Prefix string
}

// Manifest is the parsed VENDOR.yml.
type Manifest struct {
	Subtrees map[string]Spec
}

// Load reads and parses a vendor manifest and fills in per-entry defaults.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	var manifest Manifest
	err = yaml.Unmarshal(data, &manifest)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	for name, spec := range manifest.Subtrees {
		spec.Name = name
		if spec.Remote == "" {
			spec.Remote = name
		}
		if spec.Branch == "" {
			spec.Branch = "main"
		}

		if spec.URL == "" {
			return nil, eris.Errorf("subtree %s has no url", name)
		}
		if spec.Prefix == "" {
			return nil, eris.Errorf("subtree %s has no prefix", name)
		}

		manifest.Subtrees[name] = spec
	}

	return &manifest, nil
}

// Runner executes git command lines in the kernel source root.
// *shell.Runner implements it.
type Runner interface {
	Run(ctx context.Context, name, script string) error
	Output(ctx context.Context, name, script string) (string, error)
}

// Import runs one protocol step for the given tree.
//
// Prefix present: the tree is deleted and the operator has to commit the
// removal before re-running; the remote configuration is left untouched and
// the step completes normally. Prefix absent: the remote is added if missing,
// fetched, and the remote branch is imported at the prefix with a single
// read-tree.
func Import(ctx context.Context, git Runner, root string, spec Spec) error {
	local := filepath.Join(root, filepath.FromSlash(spec.Prefix))

	_, err := os.Stat(local)
	if err == nil {
		term.Log(ctx).Info().Msgf("Removing existing %s", spec.Prefix)
		err = os.RemoveAll(local)
		if err != nil {
			return eris.Wrapf(err, "failed to remove %s", local)
		}

		term.PrintTask(fmt.Sprintf("Removed %s. Commit the removal, then re-run to import %s again.", spec.Prefix, spec.Name))
		return nil
	}
	if !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to check %s", local)
	}

	present, err := hasRemote(ctx, git, spec.Remote)
	if err != nil {
		return err
	}

	if !present {
		err = git.Run(ctx, spec.Name, fmt.Sprintf("git remote add %s %s", spec.Remote, spec.URL))
		if err != nil {
			return eris.Wrapf(err, "failed to add remote %s", spec.Remote)
		}
	}

	err = git.Run(ctx, spec.Name, "git fetch "+spec.Remote)
	if err != nil {
		return eris.Wrapf(err, "failed to fetch %s", spec.Remote)
	}

	err = git.Run(ctx, spec.Name, fmt.Sprintf("git read-tree --prefix=%s -u %s/%s", spec.Prefix, spec.Remote, spec.Branch))
	if err != nil {
		return eris.Wrapf(err, "failed to import %s at %s", spec.Name, spec.Prefix)
	}

	term.PrintTask(fmt.Sprintf("Imported %s/%s at %s", spec.Remote, spec.Branch, spec.Prefix))
	return nil
}

func hasRemote(ctx context.Context, git Runner, remote string) (bool, error) {
	out, err := git.Output(ctx, "remotes", "git remote")
	if err != nil {
		return false, eris.Wrap(err, "failed to list remotes")
	}

	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == remote {
			return true, nil
		}
	}
	return false, nil
}
