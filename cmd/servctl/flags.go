package main

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// ActionFlags holds flags of the action commands.
type ActionFlags struct {
	DryRun bool
}

// SetFlags Flag structs to decouple cobra from logic for testing. Scalar
// fields only apply when the flag was given on the command line.
type SetFlags struct {
	DisplayName string
	Path        string
	Runtime     string
	Aliases     []string
	Shell       string
	ShellInit   string
	Env         []string
	VersionCmd  string
	UpdateCmd   string
	RestartCmd  string
	StatusCmd   string
	HealthCmd   string
}
