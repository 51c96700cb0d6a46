package service

import (
	"sort"
	"strings"

	"github.com/loykin/servctl/internal/errs"
)

// SetOptions carries one configuration write. Nil pointers leave the field
// untouched; Aliases and Env are merged into the existing values.
type SetOptions struct {
	DisplayName *string
	Path        *string
	Runtime     *Runtime
	Aliases     []string
	Shell       *string
	ShellInit   *string
	Env         []string // KEY=VALUE
	VersionCmd  *string
	UpdateCmd   *string
	RestartCmd  *string
	StatusCmd   *string
	HealthCmd   *string
}

// Apply mutates r with opts. The record is left unchanged when an env entry is
// malformed.
func (r *Record) Apply(opts SetOptions) error {
	env, err := parseEnvPairs(opts.Env)
	if err != nil {
		return err
	}
	r.Normalize()

	if opts.DisplayName != nil {
		r.DisplayName = *opts.DisplayName
	}
	if opts.Path != nil {
		r.Path = *opts.Path
	}
	if opts.Runtime != nil {
		r.Runtime = *opts.Runtime
	}
	if len(opts.Aliases) > 0 {
		r.Aliases = mergeAliases(r.Aliases, opts.Aliases)
	}
	if opts.Shell != nil {
		r.Shell = *opts.Shell
	}
	if opts.ShellInit != nil {
		r.ShellInit = *opts.ShellInit
	}
	for k, v := range env {
		r.Env[k] = v
	}
	if opts.VersionCmd != nil {
		r.VersionCmd = *opts.VersionCmd
	}

	if r.Runtime == ContainerCompose {
		for name, cmd := range ComposeDefaults {
			if _, ok := r.Actions[name]; !ok {
				r.Actions[name] = cmd
			}
		}
	}

	for name, cmd := range map[string]*string{
		ActionUpdate:  opts.UpdateCmd,
		ActionRestart: opts.RestartCmd,
		ActionStatus:  opts.StatusCmd,
		ActionHealth:  opts.HealthCmd,
	} {
		if cmd != nil {
			r.Actions[name] = *cmd
		}
	}
	return nil
}

// mergeAliases dedupes case-insensitively, keeping the latest spelling, and
// sorts by lowercase form.
func mergeAliases(existing, added []string) []string {
	byKey := make(map[string]string, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, a := range list {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			byKey[strings.ToLower(a)] = a
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		i := strings.IndexByte(pair, '=')
		if i < 0 {
			return nil, errs.New(errs.InvalidInput, "invalid --env '%s', expected KEY=VALUE", pair)
		}
		k := strings.TrimSpace(pair[:i])
		if k == "" {
			return nil, errs.New(errs.InvalidInput, "invalid --env '%s', key is empty", pair)
		}
		out[k] = pair[i+1:]
	}
	return out, nil
}
