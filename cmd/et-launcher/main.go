package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/emcomm-tools/et-launcher/internal/app"
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/instance"
	"github.com/emcomm-tools/et-launcher/internal/logging"
	"github.com/emcomm-tools/et-launcher/internal/tui"
)

// Version is set at build time
var Version = "dev"

type globalOptions struct {
	configRoot string
	radioFile  string
	logLevel   string
	console    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "et-launcher",
		Short: "Launcher for the EmComm Tools programs",
		Long: `et-launcher starts the EmComm Tools helpers in a terminal, keeps the
operator profile, mode and launcher settings under the user configuration
directory, and reports the active radio.

Basic Usage:
  et-launcher                      # Start the TUI
  et-launcher serve                # Serve the HTTP bridge for web front ends
  et-launcher launch et-user       # Open et-user in the configured terminal
  et-launcher launch --app js8call # Launch a catalog entry
  et-launcher grid -- 45.5 -122.6  # Convert coordinates to a grid locator`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configRoot, "config-root", "", "Configuration root (default: user config directory)")
	pf.StringVar(&opts.radioFile, "radio-file", config.DefaultRadioFile, "Active radio descriptor")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&opts.console, "console", false, "Start with the console pane visible")

	root.AddCommand(
		newServeCmd(opts),
		newTokenCmd(opts),
		newLaunchCmd(opts),
		newRunCmd(opts),
		newUserCmd(opts),
		newModeCmd(opts),
		newRadioCmd(opts),
		newGridCmd(opts),
		newSettingsCmd(opts),
		newCatalogCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *globalOptions) paths() (config.Paths, error) {
	var paths config.Paths
	if o.configRoot != "" {
		paths = config.NewPaths(o.configRoot)
	} else {
		p, err := config.DefaultPaths()
		if err != nil {
			return config.Paths{}, err
		}
		paths = p
	}
	if o.radioFile != "" {
		paths.RadioFile = o.radioFile
	}
	return paths, nil
}

// open builds the App for one command. The returned cleanup shuts down the
// bus and closes the log file.
func (o *globalOptions) open(stderr io.Writer) (*app.App, func(), error) {
	paths, err := o.paths()
	if err != nil {
		return nil, nil, err
	}

	log, closer, err := logging.New(logging.Options{
		Level:   o.logLevel,
		File:    paths.Log(),
		Console: stderr != nil,
		Stderr:  stderr,
	})
	if err != nil {
		return nil, nil, err
	}

	a := app.New(app.Options{Paths: paths, Log: log, ConsoleVisible: o.console})
	cleanup := func() {
		a.Close()
		closer.Close()
	}
	return a, cleanup, nil
}

func runTUI(opts *globalOptions) error {
	a, cleanup, err := opts.open(nil)
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

	model, err := tui.NewModel(a)
	if err != nil {
		return err
	}
	defer model.Close()

	sigChan := make(chan os.Signal, 1)
	setupSignalHandling(sigChan)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(model, tea.WithAltScreen())
	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-sigChan:
		a.Log.Info().Msg("interrupted, shutting down")
		p.Quit()
		return <-done
	}
}
