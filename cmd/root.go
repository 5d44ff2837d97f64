package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/caracaldl/caracal/internal/config"
	"github.com/caracaldl/caracal/internal/engine/factory"
	"github.com/caracaldl/caracal/internal/history"
	"github.com/caracaldl/caracal/internal/scheduler"
	"github.com/caracaldl/caracal/internal/tui"
)

// Version information - set via ldflags during build.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "caracal",
	Short:   "A multi-protocol parallel download engine and task scheduler",
	Long:    `caracal schedules and runs chunked, resumable downloads over HTTP(S), local files, SFTP, and MinIO/S3, one instance per machine, driven by a CLI or its status TUI.`,
	Version: Version,
	Run:     runRoot,
}

func runRoot(cmd *cobra.Command, args []string) {
	isMaster, err := AcquireLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error acquiring lock: %v\n", err)
		os.Exit(1)
	}
	if !isMaster {
		fmt.Fprintln(os.Stderr, "Error: caracal is already running.")
		fmt.Fprintln(os.Stderr, "Use 'caracal get <url>' to submit a download to the active instance.")
		os.Exit(1)
	}
	defer ReleaseLock()

	headless, _ := cmd.Flags().GetBool("headless")
	portFlag, _ := cmd.Flags().GetInt("port")
	outputDir, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if outputDir != "" {
		cfg.DefaultOutputDirectory = outputDir
	}

	hist, err := history.Open(filepath.Join(config.CaracalDir(), "history.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening task history: %v\n", err)
		os.Exit(1)
	}
	defer hist.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, factory.New(cfg), cfg.MaxConcurrentTaskNumber)
	defer sched.Shutdown()

	var port int
	var listener net.Listener
	if portFlag > 0 {
		port = portFlag
		listener, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not bind to port %d: %v\n", port, err)
			os.Exit(1)
		}
	} else {
		port, listener = findAvailablePort(8080)
		if listener == nil {
			fmt.Fprintln(os.Stderr, "Error: could not find an available port")
			os.Exit(1)
		}
	}
	saveActivePort(port)
	defer removeActivePort()

	server := newControlServer(sched, hist, cfg)
	go server.serve(listener)
	go syncHistoryLoop(ctx, sched, hist)

	if headless {
		fmt.Printf("caracal %s running in headless mode.\n", Version)
		fmt.Printf("control API listening on port %d\n", port)
		fmt.Println("Press Ctrl+C to exit.")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\nShutting down...")
		return
	}

	model := tui.New(sched, Version, port)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("headless", false, "run without the status TUI")
	rootCmd.Flags().IntP("port", "p", 0, "control API port (default: 8080 or first available)")
	rootCmd.Flags().StringP("output", "o", "", "default output directory for new tasks")
	rootCmd.SetVersionTemplate("caracal version {{.Version}}\n")
}
