// Package main implements the Dread Remote Console entry point. This file
// handles command-line argument parsing, dependency injection, and startup of
// the Bubble Tea window around the protocol engine.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dread-remote/console/internal/config"
	"github.com/dread-remote/console/internal/content"
	"github.com/dread-remote/console/internal/logging"
	"github.com/dread-remote/console/internal/protocol"
	"github.com/dread-remote/console/internal/ui/console"
)

// Application metadata
const (
	Version     = "1.0.0"
	ProgramName = "Dread Remote Lua Console"
)

// CommandLineArgs represents parsed command-line arguments
type CommandLineArgs struct {
	Host        string
	Theme       string
	ShowHelp    bool
	ShowVersion bool
}

func main() {
	args := parseCommandLineArgs()

	if args.ShowHelp {
		flag.Usage()
		return
	}
	if args.ShowVersion {
		fmt.Printf("%s v%s\n", ProgramName, Version)
		return
	}

	logger := initializeLogging()

	if err := run(args, logger); err != nil {
		logger.Error("Application terminated with error", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Application shutdown completed")
}

// parseCommandLineArgs processes command-line arguments
func parseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	flag.StringVar(&args.Host, "host", "", "Host or IP of the game to connect to (default: last used host)")
	flag.StringVar(&args.Theme, "theme", "", "Chroma style for Lua syntax highlighting")
	flag.BoolVar(&args.ShowHelp, "help", false, "Display usage information and exit")
	flag.BoolVar(&args.ShowVersion, "version", false, "Display version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", ProgramName, Version)
		fmt.Fprintf(os.Stderr, "A terminal console for executing Lua code on the debug server\n")
		fmt.Fprintf(os.Stderr, "embedded in a running copy of Metroid Dread (port %d).\n\n", protocol.DefaultPort)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration file location: ~/.config/dreadconsole/config.yaml\n")
	}

	flag.Parse()
	return args
}

// initializeLogging sets up the logging system. CONSOLE_DEBUG=true enables
// debug output; logs go to a file so they never corrupt the alt screen.
func initializeLogging() *logging.Logger {
	logConfig := logging.DefaultConfig()
	logConfig.Output = "dreadconsole.log"
	if os.Getenv("CONSOLE_DEBUG") == "true" {
		logConfig.Level = logging.DebugLevel
		logConfig.Format = "json"
	}

	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	logger := logging.GetGlobalLogger()
	logger.Info("Dread Remote Console starting", "version", Version)
	return logger
}

// run constructs all dependencies and drives the window until exit.
func run(args CommandLineArgs, logger *logging.Logger) error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	settings, err := configManager.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	host := args.Host
	if host == "" {
		host = settings.LastHost
	}
	if host == "" {
		host = "127.0.0.1"
	}

	theme := args.Theme
	if theme == "" {
		theme = settings.Theme
	}

	renderer, err := content.NewRenderer(theme)
	if err != nil {
		return fmt.Errorf("failed to initialize content renderer: %w", err)
	}

	sink := console.NewSink()
	executor, err := protocol.NewClient(host, sink)
	if err != nil {
		return fmt.Errorf("failed to initialize protocol client: %w", err)
	}
	defer executor.Disconnect()

	model := console.NewModel(executor, renderer, configManager)
	program := tea.NewProgram(model, tea.WithAltScreen())
	sink.Attach(program)

	logger.Info("Starting TUI application", "host", host)
	_, err = program.Run()
	return err
}
