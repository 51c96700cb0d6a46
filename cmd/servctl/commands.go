package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/servctl/internal/dispatch"
	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/process"
	"github.com/loykin/servctl/internal/service"
)

// command carries the streams and the process runner shared by every
// subcommand, and the exit code of the last dispatch.
type command struct {
	global *GlobalFlags
	stdout io.Writer
	stderr io.Writer
	proc   process.Runner
	code   int
}

// with opens a session, runs fn with its dispatcher and records the exit code.
func (c *command) with(fn func(ctx context.Context, d *dispatch.Dispatcher) int) error {
	s, err := openSession(c.global, c.stdout, c.stderr, c.proc)
	if err != nil {
		return err
	}
	c.code = fn(context.Background(), s.dispatcher)
	if err := s.Close(); err != nil {
		s.log.Warn("session close failed", "error", err)
	}
	return nil
}

// buildRoot creates the root command and every subcommand.
func buildRoot(c *command) *cobra.Command {
	root := createRootCommand(c.global)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.AddCommand(
		createListCommand(c),
		createShowCommand(c),
		createVersionsCommand(c),
		createRunCommand(c, &ActionFlags{}),
		createSetCommand(c, &SetFlags{}),
		createRemoveCommand(c),
	)
	for _, name := range []string{service.ActionUpdate, service.ActionRestart, service.ActionStatus, service.ActionHealth} {
		root.AddCommand(createActionCommand(c, name, &ActionFlags{}))
	}
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "servctl",
		Short: "Run configured actions against registered services",
		Long: `servctl keeps a registry of services and runs their update, restart,
status and health commands in the right directory and environment.

Examples:
  servctl set blog --path=~/srv/blog --runtime=docker_compose --alias=博客
  servctl update 博客
  servctl restart blog --dry-run
  servctl versions blog`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML settings file (optional, else $SERVCTL_CONFIG)")
	return root
}

func createListCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.List(ctx)
			})
		},
	}
}

func createShowCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "show <service>",
		Short: "Show a service as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.Show(ctx, args[0])
			})
		},
	}
}

func createVersionsCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <service>",
		Short: "Print the current version snapshot of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.Versions(ctx, args[0])
			})
		},
	}
}

// createActionCommand creates update/restart/status/health.
func createActionCommand(c *command, name string, flags *ActionFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " <service>",
		Short: fmt.Sprintf("Run the %s action", name),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.RunAction(ctx, args[0], name, flags.DryRun)
			})
		},
	}
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "print the command without running it")
	return cmd
}

func createRunCommand(c *command, flags *ActionFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <service> <action>",
		Short: "Run a custom action",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.RunAction(ctx, args[0], args[1], flags.DryRun)
			})
		},
	}
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "print the command without running it")
	return cmd
}

func createSetCommand(c *command, flags *SetFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <service>",
		Short: "Create or update a service",
		Long: `Create a service on first use, or update the given fields of an existing one.
Aliases and --env entries are added to the existing ones; other flags replace.

Examples:
  servctl set blog --path=~/srv/blog --runtime=docker_compose
  servctl set blog --alias=博客 --env=COMPOSE_PROJECT_NAME=blog
  servctl set api --runtime=systemd --restart-cmd="sudo systemctl restart api"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := setOptions(cmd, flags)
			if err != nil {
				return err
			}
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.Set(ctx, args[0], opts)
			})
		},
	}

	runtimes := make([]string, len(service.Runtimes))
	for i, r := range service.Runtimes {
		runtimes[i] = r.String()
	}
	cmd.Flags().StringVar(&flags.DisplayName, "display-name", "", "human readable name")
	cmd.Flags().StringVar(&flags.Path, "path", "", "working directory (~ is expanded)")
	cmd.Flags().StringVar(&flags.Runtime, "runtime", "", "runtime: "+strings.Join(runtimes, "|"))
	cmd.Flags().StringArrayVar(&flags.Aliases, "alias", nil, "alias (repeatable)")
	cmd.Flags().StringVar(&flags.Shell, "shell", "", "shell binary (default /bin/sh)")
	cmd.Flags().StringVar(&flags.ShellInit, "shell-init", "", "snippet run before every command")
	cmd.Flags().StringArrayVar(&flags.Env, "env", nil, "extra environment KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&flags.VersionCmd, "version-cmd", "", "command printing the deployed version")
	cmd.Flags().StringVar(&flags.UpdateCmd, "update-cmd", "", "update command")
	cmd.Flags().StringVar(&flags.RestartCmd, "restart-cmd", "", "restart command")
	cmd.Flags().StringVar(&flags.StatusCmd, "status-cmd", "", "status command")
	cmd.Flags().StringVar(&flags.HealthCmd, "health-cmd", "", "health command")
	return cmd
}

// setOptions maps the flags that were actually given to SetOptions.
func setOptions(cmd *cobra.Command, f *SetFlags) (service.SetOptions, error) {
	changed := func(name string, v string) *string {
		if cmd.Flags().Changed(name) {
			return &v
		}
		return nil
	}
	opts := service.SetOptions{
		DisplayName: changed("display-name", f.DisplayName),
		Path:        changed("path", f.Path),
		Aliases:     f.Aliases,
		Shell:       changed("shell", f.Shell),
		ShellInit:   changed("shell-init", f.ShellInit),
		Env:         f.Env,
		VersionCmd:  changed("version-cmd", f.VersionCmd),
		UpdateCmd:   changed("update-cmd", f.UpdateCmd),
		RestartCmd:  changed("restart-cmd", f.RestartCmd),
		StatusCmd:   changed("status-cmd", f.StatusCmd),
		HealthCmd:   changed("health-cmd", f.HealthCmd),
	}
	if cmd.Flags().Changed("runtime") {
		rt, ok := service.ParseRuntime(f.Runtime)
		if !ok {
			return opts, errs.New(errs.InvalidInput, "invalid --runtime %q", f.Runtime)
		}
		opts.Runtime = &rt
	}
	return opts, nil
}

func createRemoveCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <service>",
		Short: "Remove a service (exact key only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.with(func(ctx context.Context, d *dispatch.Dispatcher) int {
				return d.Remove(ctx, args[0])
			})
		},
	}
}

// usageError classifies errors returned before dispatch: bad arguments,
// unreadable settings. Typed errors keep their kind.
func usageError(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.New(errs.InvalidInput, "%v", err)
}
