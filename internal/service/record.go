// Package service holds the Service Record: the configuration unit describing
// one manageable external service.
package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	DefaultShell     = "/bin/sh"
	DefaultShellInit = ":"
)

// Well-known action names.
const (
	ActionUpdate  = "update"
	ActionRestart = "restart"
	ActionStatus  = "status"
	ActionHealth  = "health"
)

// ComposeDefaults are filled into a docker_compose record for actions the
// operator has not configured.
var ComposeDefaults = map[string]string{
	ActionUpdate:  "docker compose pull && docker compose up -d --remove-orphans",
	ActionRestart: "docker compose restart",
	ActionStatus:  "docker compose ps",
	ActionHealth:  "docker compose ps",
}

// Record describes one service. The key is not stored in the record; it is the
// map key of the registry document.
type Record struct {
	DisplayName string            `json:"display_name"`
	Path        string            `json:"path"`
	Runtime     Runtime           `json:"runtime"`
	Aliases     []string          `json:"aliases"`
	Shell       string            `json:"shell"`
	ShellInit   string            `json:"shell_init"`
	Env         Env               `json:"env"`
	Actions     map[string]string `json:"actions"`
	VersionCmd  string            `json:"version_cmd,omitempty"`
}

// UnmarshalJSON decodes a hand-edited record leniently: scalars are coerced to
// strings and a field of the wrong shape falls back to empty. Only a record
// that is not a JSON object is rejected.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]jsoniter.RawMessage
	if err := jsoniter.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("service record is not a JSON object: %w", err)
	}
	out := Record{
		DisplayName: scalar(raw["display_name"]),
		Path:        scalar(raw["path"]),
		Aliases:     stringList(raw["aliases"]),
		Shell:       scalar(raw["shell"]),
		ShellInit:   scalar(raw["shell_init"]),
		Actions:     stringMap(raw["actions"]),
		VersionCmd:  scalar(raw["version_cmd"]),
	}
	if msg, ok := raw["runtime"]; ok {
		_ = out.Runtime.UnmarshalJSON(msg)
	}
	if msg, ok := raw["env"]; ok {
		_ = out.Env.UnmarshalJSON(msg)
	}
	*r = out
	return nil
}

// Key derives the canonical key from a human supplied name.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New returns the record created on the first write for name.
func New(name string) Record {
	return Record{
		DisplayName: strings.TrimSpace(name),
		Runtime:     Custom,
		Aliases:     []string{},
		Shell:       DefaultShell,
		ShellInit:   DefaultShellInit,
		Env:         Env{},
		Actions:     map[string]string{},
	}
}

// Normalize fills defaults for fields missing from a loaded document.
func (r *Record) Normalize() {
	if r.Runtime == "" {
		r.Runtime = Custom
	}
	if r.Aliases == nil {
		r.Aliases = []string{}
	}
	if r.Env == nil {
		r.Env = Env{}
	}
	if r.Actions == nil {
		r.Actions = map[string]string{}
	}
}

// Action returns the trimmed command for name and whether it is configured.
func (r Record) Action(name string) (string, bool) {
	cmd := strings.TrimSpace(r.Actions[name])
	return cmd, cmd != ""
}

// HasVersionProbe reports whether a version command is configured.
func (r Record) HasVersionProbe() bool {
	return strings.TrimSpace(r.VersionCmd) != ""
}

// ShellBinary returns the configured shell or DefaultShell.
func (r Record) ShellBinary() string {
	if s := strings.TrimSpace(r.Shell); s != "" {
		return s
	}
	return DefaultShell
}

// Init returns the shell init snippet, ":" when unset.
func (r Record) Init() string {
	if s := strings.TrimSpace(r.ShellInit); s != "" {
		return s
	}
	return DefaultShellInit
}

// Tokens returns the lowercase match tokens of a record: key, display name and
// every alias, without blanks.
func (r Record) Tokens(key string) []string {
	out := []string{strings.ToLower(key)}
	if d := strings.ToLower(strings.TrimSpace(r.DisplayName)); d != "" {
		out = append(out, d)
	}
	for _, a := range r.Aliases {
		if t := strings.ToLower(strings.TrimSpace(a)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Env is the extra environment of a record. Non-string JSON values are
// coerced to strings on load.
type Env map[string]string

func (e *Env) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := jsoniter.Unmarshal(b, &raw); err != nil {
		// wrong shape: treat as no extra environment
		*e = Env{}
		return nil
	}
	out := make(Env, len(raw))
	for k, v := range raw {
		out[k] = coerce(v)
	}
	*e = out
	return nil
}

// Keys returns the variable names in sorted order.
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s, _ := jsoniter.MarshalToString(t)
		return s
	}
}

// scalar decodes a string field. Numbers and booleans are coerced; objects,
// arrays and undecodable input yield "".
func scalar(msg jsoniter.RawMessage) string {
	if len(msg) == 0 {
		return ""
	}
	var v any
	if err := jsoniter.Unmarshal(msg, &v); err != nil {
		return ""
	}
	return scalarValue(v)
}

func scalarValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	return coerce(v)
}

func stringList(msg jsoniter.RawMessage) []string {
	var items []any
	if len(msg) == 0 || jsoniter.Unmarshal(msg, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := scalarValue(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(msg jsoniter.RawMessage) map[string]string {
	var m map[string]any
	if len(msg) == 0 || jsoniter.Unmarshal(msg, &m) != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = scalarValue(v)
	}
	return out
}
