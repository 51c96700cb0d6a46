package service

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Runtime is the deployment mechanism of a service. The set is closed: every
// switch over Runtime handles all four values.
type Runtime string

const (
	ContainerCompose Runtime = "docker_compose"
	InitSystem       Runtime = "systemd"
	ProcessManager   Runtime = "pm2"
	Custom           Runtime = "custom"
)

// Runtimes lists the accepted runtime names in display order.
var Runtimes = []Runtime{ContainerCompose, InitSystem, ProcessManager, Custom}

// ParseRuntime maps a configuration string to a Runtime. ok is false for
// unknown names.
func ParseRuntime(s string) (Runtime, bool) {
	switch Runtime(strings.ToLower(strings.TrimSpace(s))) {
	case ContainerCompose:
		return ContainerCompose, true
	case InitSystem:
		return InitSystem, true
	case ProcessManager:
		return ProcessManager, true
	case Custom:
		return Custom, true
	}
	return Custom, false
}

func (r Runtime) String() string { return string(r) }

// UnmarshalJSON accepts any string and falls back to Custom for unknown or
// missing values, so partially populated documents still load.
func (r *Runtime) UnmarshalJSON(b []byte) error {
	var s string
	if err := jsoniter.Unmarshal(b, &s); err != nil {
		*r = Custom
		return nil
	}
	*r, _ = ParseRuntime(s)
	return nil
}
