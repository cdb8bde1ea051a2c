package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/emcomm-tools/et-launcher/internal/api"
	"github.com/emcomm-tools/et-launcher/internal/auth"
	"github.com/emcomm-tools/et-launcher/internal/catalog"
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
	"github.com/emcomm-tools/et-launcher/internal/grid"
	"github.com/emcomm-tools/et-launcher/internal/instance"
	"github.com/emcomm-tools/et-launcher/internal/process"
	"github.com/emcomm-tools/et-launcher/pkg/ports"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		addr        string
		requireAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP bridge for web front ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			lock, err := instance.Acquire(a.Paths.Lock())
			if err != nil {
				return err
			}
			defer lock.Release()

			if watcher, err := a.WatchRadio(); err != nil {
				a.Log.Warn().Err(err).Msg("radio watching disabled")
			} else {
				defer watcher.Stop()
			}

			srv := api.NewServer(a)
			if requireAuth {
				secret, err := auth.LoadOrCreateSecret(a.Paths.Secret())
				if err != nil {
					return err
				}
				verifier, err := auth.NewVerifier(secret)
				if err != nil {
					return err
				}
				srv.RequireAuth(verifier)
				a.Log.Info().Msg("bearer tokens required; mint one with 'et-launcher token'")
			}

			listener, err := ports.Listen(addr)
			if err != nil {
				return err
			}
			listenAddr := listener.Addr().String()
			if listenAddr != addr {
				a.Log.Warn().Str("requested", addr).Str("addr", listenAddr).Msg("address in use, using another port")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s\n", listenAddr)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Serve(listener)
			}()

			sigChan := make(chan os.Signal, 1)
			setupSignalHandling(sigChan)
			defer signal.Stop(sigChan)

			select {
			case err := <-errCh:
				return err
			case <-sigChan:
				a.Log.Info().Msg("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Stop(ctx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7878", "Listen address")
	cmd.Flags().BoolVar(&requireAuth, "auth", false, "Require bearer tokens on /api routes")
	return cmd
}

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for 'serve --auth'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			secret, err := auth.LoadOrCreateSecret(paths.Secret())
			if err != nil {
				return err
			}
			verifier, err := auth.NewVerifier(secret)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	return cmd
}

func newLaunchCmd(opts *globalOptions) *cobra.Command {
	var (
		wait   bool
		useApp bool
	)

	cmd := &cobra.Command{
		Use:   "launch <target>",
		Short: "Launch a program in the configured terminal",
		Long: `Launch starts target in the configured terminal and returns once it is
running. With --app, target names a catalog entry instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			var s *process.Session
			if useApp {
				cat, err := a.Catalog()
				if err != nil {
					return err
				}
				entry, ok := cat.Find(args[0])
				if !ok {
					return fmt.Errorf("unknown app %q", args[0])
				}
				s, err = a.LaunchApp(entry)
				if err != nil {
					return err
				}
			} else {
				s, err = a.Launch(args[0])
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tpid %d\n", s.ID, s.Target, s.PID)
			if !wait {
				return nil
			}

			<-s.Done()
			result := s.Result()
			if result.Status == process.StatusFailed {
				return result.Err
			}
			if result.ExitCode != 0 {
				return fmt.Errorf("%s exited with status %d", s.Target, result.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the program to exit")
	cmd.Flags().BoolVar(&useApp, "app", false, "Treat the argument as a catalog entry name")
	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run a program in the terminal and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := a.RunApp(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newUserCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show or update the operator profile",
	}

	var showPassword bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the operator profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			u, err := a.ReadUser()
			if err != nil {
				return err
			}
			if !showPassword && u.WinlinkPasswd != "" {
				u.WinlinkPasswd = "********"
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
	show.Flags().BoolVar(&showPassword, "show-password", false, "Print the Winlink password")

	var profile config.UserProfile
	set := &cobra.Command{
		Use:   "set",
		Short: "Update fields of the operator profile",
		Long: `Update fields of the operator profile.

The flags given are applied to the stored profile and the complete profile
is written back as one document. Fields without a flag keep their stored
value; with no stored profile they start empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			// The merge happens here; WriteUser always replaces the document.
			current, err := a.ReadUser()
			if err != nil && !fault.Is(err, fault.NotFound) {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("callsign") {
				current.Callsign = profile.Callsign
			}
			if flags.Changed("grid") {
				current.Grid = profile.Grid
			}
			if flags.Changed("winlink-passwd") {
				current.WinlinkPasswd = profile.WinlinkPasswd
			}
			return a.WriteUser(current)
		},
	}
	set.Flags().StringVar(&profile.Callsign, "callsign", "", "Callsign")
	set.Flags().StringVar(&profile.Grid, "grid", "", "Grid locator")
	set.Flags().StringVar(&profile.WinlinkPasswd, "winlink-passwd", "", "Winlink password")

	cmd.AddCommand(show, set)
	return cmd
}

func newModeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or set the operating mode",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the operating mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			mode, err := a.ReadMode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mode)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <mode>",
		Short: "Set the operating mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.WriteMode(args[0])
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func newRadioCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "radio",
		Short: "Print the active radio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			radio, err := a.ActiveRadio()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), radio)
			return nil
		},
	}
}

func newGridCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grid [-- <lat> <lon>]",
		Short: "Print the grid locator for coordinates or the current position",
		Long: `Grid converts decimal degrees to a six-character Maidenhead locator. Without
coordinates it asks the system-info helper for the current position. Put
negative coordinates after "--".`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expected no arguments or <lat> <lon>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				lat, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid latitude: %w", err)
				}
				lon, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid longitude: %w", err)
				}
				locator, err := grid.ToLocator(lat, lon)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), locator)
				return nil
			}

			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			reply, err := a.GridFromSystemInfo(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func newSettingsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the launcher settings, creating defaults on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			settings, err := a.LoadSettings()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settings)
		},
	}

	var values config.Settings
	set := &cobra.Command{
		Use:   "set",
		Short: "Update launcher settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			settings, err := a.LoadSettings()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("terminal-command") {
				settings.TerminalCommand = values.TerminalCommand
			}
			if flags.Changed("terminal-arg") {
				settings.TerminalArg = values.TerminalArg
			}
			if flags.Changed("sys-info-cmd") {
				settings.SysInfoCmd = values.SysInfoCmd
			}
			if flags.Changed("sys-info-arg") {
				settings.SysInfoArg = values.SysInfoArg
			}
			return a.SaveSettings(settings)
		},
	}
	set.Flags().StringVar(&values.TerminalCommand, "terminal-command", "", "Terminal emulator used for launches")
	set.Flags().StringVar(&values.TerminalArg, "terminal-arg", "", "Flag that makes the terminal execute its argument")
	set.Flags().StringVar(&values.SysInfoCmd, "sys-info-cmd", "", "System-info helper")
	set.Flags().StringVar(&values.SysInfoArg, "sys-info-arg", "", "Argument that asks the helper for coordinates")

	cmd.AddCommand(set)
	return cmd
}

func newCatalogCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the programs the launcher offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open(nil)
			if err != nil {
				return err
			}
			defer cleanup()

			cat, err := a.Catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, entry := range cat.Apps {
				kind := "terminal"
				if entry.Direct {
					kind = "direct"
				}
				fmt.Fprintf(out, "%-10s %-8s %-20s %s\n", entry.Name, kind, entry.Title(), entry.Command)
			}
			return nil
		},
	}

	var (
		force  bool
		asYAML bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in catalog so it can be edited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			path := paths.Catalog()
			if asYAML {
				path = paths.CatalogYAML()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := catalog.Save(path, catalog.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing catalog")
	initCmd.Flags().BoolVar(&asYAML, "yaml", false, "Write YAML instead of TOML")

	cmd.AddCommand(initCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "et-launcher version %s\n", Version)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
