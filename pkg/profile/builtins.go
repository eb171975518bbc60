package profile

import (
	"os"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/balgxmr/kernel-xiaomi-cepheus/pkg/term"
)

func starProfile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var makeArgs *starlark.List
	var env *starlark.Dict

	prof := new(Profile)

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &prof.Name, "base?", &prof.Base,
		"defconfig?", &prof.Defconfig, "label?", &prof.Label, "suffix?", &prof.Suffix,
		"make_args?", &makeArgs, "env?", &env)
	if err != nil {
		return nil, err
	}

	if prof.Name == "" {
		return nil, eris.New("profile name must not be empty")
	}

	ctx := getCtx(thread)
	if _, present := ctx.profiles[prof.Name]; present && prof.Name != DefaultName {
		return nil, eris.Errorf("profile %s was already declared", prof.Name)
	}

	prof.MakeArgs, err = stringList(makeArgs, "make_args")
	if err != nil {
		return nil, err
	}

	prof.Env = map[string]string{}
	if env != nil {
		for _, rawKey := range env.Keys() {
			key, ok := rawKey.(starlark.String)
			if !ok {
				return nil, eris.Errorf("found key type %s in env map but only strings are supported", rawKey.Type())
			}

			rawValue, _, err := env.Get(rawKey)
			if err != nil {
				return nil, err
			}

			value, ok := rawValue.(starlark.String)
			if !ok {
				return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", rawValue.Type(), key.GoString())
			}

			prof.Env[key.GoString()] = value.GoString()
		}
	}

	ctx.profiles[prof.Name] = prof
	return starlark.None, nil
}

func stringList(input *starlark.List, field string) ([]string, error) {
	if input == nil {
		return []string{}, nil
	}

	result := make([]string, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		value, ok := item.(starlark.String)
		if !ok {
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}
		result = append(result, value.GoString())
	}
	return result, nil
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var fallback string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &key, "default?", &fallback)
	if err != nil {
		return nil, err
	}

	value, ok := os.LookupEnv(key)
	if !ok {
		value = fallback
	}

	return starlark.String(value), nil
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	term.Log(getCtx(thread).ctx).Info().Msgf("%s: %s", logPos(thread), message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	term.Log(getCtx(thread).ctx).Warn().Msgf("%s: %s", logPos(thread), message)
	return starlark.None, nil
}

func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	return nil, eris.New(message)
}
