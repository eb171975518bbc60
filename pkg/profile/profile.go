// Package profile loads build variant declarations from a Starlark file.
// A profile bundles the defconfig, release labeling and extra make arguments
// for one kind of build (stock, KernelSU, debug, ...) so operators switch
// variants with a single flag instead of editing the config.
package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

// DefaultName is the profile used when the operator doesn't pick one.
const DefaultName = "default"

// Profile describes one build variant. Empty fields inherit from the base
// profile chain and ultimately from the config file.
type Profile struct {
	Name      string
	Base      string
	Defconfig string
	Label     string
	Suffix    string
	MakeArgs  []string
	Env       map[string]string
}

type parserCtx struct {
	ctx      context.Context
	filename string
	profiles map[string]*Profile
}

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

// Load executes the given profiles file and returns the declared profiles.
// A missing file is not an error; it yields only the implicit default profile.
func Load(ctx context.Context, filename string) (map[string]*Profile, error) {
	profiles := map[string]*Profile{
		DefaultName: {Name: DefaultName},
	}

	script, err := os.ReadFile(filename)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			term.Log(ctx).Debug().Msgf("No profile file at %s, using defaults", filename)
			return profiles, nil
		}
		return nil, eris.Wrapf(err, "failed to read %s", filename)
	}

	builtins := starlark.StringDict{
		"OS":      starlark.String(runtime.GOOS),
		"ARCH":    starlark.String(runtime.GOARCH),
		"profile": starlark.NewBuiltin("profile", starProfile),
		"getenv":  starlark.NewBuiltin("getenv", getenv),
		"info":    starlark.NewBuiltin("info", starInfo),
		"warn":    starlark.NewBuiltin("warn", starWarn),
		"error":   starlark.NewBuiltin("error", starError),
	}

	thread := &starlark.Thread{
		Name: "profiles",
		Print: func(thread *starlark.Thread, msg string) {
			term.Log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := parserCtx{
		ctx:      ctx,
		filename: filename,
		profiles: profiles,
	}
	thread.SetLocal("parserCtx", &threadCtx)

	_, err = starlark.ExecFile(thread, filepath.Base(filename), script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", filename, evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed to execute %s", filename)
	}

	return profiles, nil
}

// Resolve flattens the base chain of the named profile. Fields of later
// profiles win over their bases; make arguments and env entries accumulate
// along the chain.
func Resolve(profiles map[string]*Profile, name string) (*Profile, error) {
	if name == "" {
		name = DefaultName
	}

	chain := make([]*Profile, 0, 2)
	seen := map[string]bool{}
	for cur := name; cur != ""; {
		if seen[cur] {
			return nil, eris.Errorf("profile %s is part of a base cycle", cur)
		}
		seen[cur] = true

		prof, ok := profiles[cur]
		if !ok {
			return nil, eris.Errorf("profile %s not found, known profiles: %s", cur, knownNames(profiles))
		}

		chain = append(chain, prof)
		cur = prof.Base
	}

	result := &Profile{Name: name, Env: map[string]string{}}
	// walk from the root of the chain towards the requested profile
	for idx := len(chain) - 1; idx >= 0; idx-- {
		prof := chain[idx]
		if prof.Defconfig != "" {
			result.Defconfig = prof.Defconfig
		}
		if prof.Label != "" {
			result.Label = prof.Label
		}
		if prof.Suffix != "" {
			result.Suffix = prof.Suffix
		}
		result.MakeArgs = append(result.MakeArgs, prof.MakeArgs...)
		for key, value := range prof.Env {
			result.Env[key] = value
		}
	}

	return result, nil
}

func knownNames(profiles map[string]*Profile) string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	result := ""
	for idx, name := range names {
		if idx > 0 {
			result += ", "
		}
		result += name
	}
	return result
}

func logPos(thread *starlark.Thread) string {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos
	return fmt.Sprintf("%s:%d:%d", ctx.filename, pos.Line, pos.Col)
}
