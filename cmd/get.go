package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/caracaldl/caracal/internal/config"
	"github.com/caracaldl/caracal/internal/engine/factory"
	"github.com/caracaldl/caracal/internal/history"
	"github.com/caracaldl/caracal/internal/scheduler"
	"github.com/caracaldl/caracal/internal/utils"
)

const pollInterval = 500 * time.Millisecond

// readURLsFromFile reads URLs from a file, one per line, skipping blanks
// and comment lines.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var urls []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		normalized := strings.TrimRight(line, "/")
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found in file")
	}
	return urls, nil
}

// waitForTerminal polls the control API until taskID reaches a terminal
// state, printing coarse progress to stderr as it goes.
func waitForTerminal(port int, taskID int64) error {
	var lastPercent uint64 = 101
	for {
		dto, err := fetchTask(port, taskID)
		if err != nil {
			return err
		}
		if dto.ContentLength > 0 {
			percent := dto.TotalReceived * 100 / dto.ContentLength
			if percent != lastPercent {
				fmt.Fprintf(os.Stderr, "  task %d: %d%% (%s / %s)\n", taskID, percent,
					utils.ConvertBytesToHumanReadable(int64(dto.TotalReceived)),
					utils.ConvertBytesToHumanReadable(int64(dto.ContentLength)))
				lastPercent = percent
			}
		}
		switch dto.State {
		case "completed":
			fmt.Fprintf(os.Stderr, "task %d complete: %s\n", taskID, dto.FilePath)
			return nil
		case "failed":
			return fmt.Errorf("task %d failed", taskID)
		case "canceled":
			return fmt.Errorf("task %d was canceled", taskID)
		}
		time.Sleep(pollInterval)
	}
}

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Submit a download to the running caracal instance, starting one if needed",
	Long: `Submit a download to a running caracal instance's task scheduler.

If no instance is running, this process becomes the instance (in headless
mode) and waits for the submitted downloads to finish before exiting. Use
--batch to submit many URLs from a file (one per line).`,
	Args: cobra.MaximumNArgs(1),
	Run:  runGet,
}

func runGet(cmd *cobra.Command, args []string) {
	outDir, _ := cmd.Flags().GetString("output")
	portFlag, _ := cmd.Flags().GetInt("port")
	batchFile, _ := cmd.Flags().GetString("batch")
	paused, _ := cmd.Flags().GetBool("paused")
	concurrentNumber, _ := cmd.Flags().GetInt("connections")
	priority, _ := cmd.Flags().GetString("priority")

	var urls []string
	if batchFile != "" {
		var err error
		urls, err = readURLsFromFile(batchFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if len(args) == 1 {
		urls = []string{args[0]}
	} else {
		fmt.Fprintln(os.Stderr, "Error: requires either a URL argument or --batch flag")
		os.Exit(1)
	}

	isMaster, err := AcquireLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking lock: %v\n", err)
		os.Exit(1)
	}

	var targetPort int
	if isMaster {
		defer ReleaseLock()
		var shutdown func()
		targetPort, shutdown = becomeEphemeralMaster(outDir)
		defer shutdown()
	} else {
		if portFlag > 0 {
			targetPort = portFlag
		} else {
			port, ok := readActivePort()
			if !ok {
				fmt.Fprintln(os.Stderr, "Error: caracal is running but its port file could not be read")
				os.Exit(1)
			}
			targetPort = port
		}
	}

	var taskIDs []int64
	var failed int
	for i, url := range urls {
		if len(urls) > 1 {
			fmt.Fprintf(os.Stderr, "\n[%d/%d] %s\n", i+1, len(urls), url)
		}
		id, err := submitTask(targetPort, taskRequest{
			URL:              url,
			OutputDirectory:  outDir,
			ConcurrentNumber: concurrentNumber,
			Paused:           paused,
			Priority:         priority,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("queued task %d: %s\n", id, url)
		taskIDs = append(taskIDs, id)
	}

	if !isMaster {
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	if paused {
		fmt.Println("Tasks are queued paused; this caracal instance is shutting down.")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for _, id := range taskIDs {
			if err := waitForTerminal(targetPort, id); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				failed++
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-sigChan:
		fmt.Println("\nStopping: pausing tasks and shutting down...")
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// becomeEphemeralMaster starts an in-process scheduler and control API for
// the lifetime of this `get` invocation, the same role the teacher's `get`
// command takes on when it can't find a running server. It does not block;
// the returned shutdown func stops the scheduler and frees the port.
func becomeEphemeralMaster(outDir string) (int, func()) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if outDir != "" {
		cfg.DefaultOutputDirectory = outDir
	}

	hist, err := history.Open(filepath.Join(config.CaracalDir(), "history.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening task history: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := scheduler.New(ctx, factory.New(cfg), cfg.MaxConcurrentTaskNumber)

	port, listener := findAvailablePort(8080)
	if listener == nil {
		fmt.Fprintln(os.Stderr, "Error: could not find an available port")
		cancel()
		os.Exit(1)
	}
	saveActivePort(port)

	server := newControlServer(sched, hist, cfg)
	go server.serve(listener)
	go syncHistoryLoop(ctx, sched, hist)

	return port, func() {
		_ = sched.Shutdown()
		cancel()
		hist.Close()
		removeActivePort()
	}
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "output directory")
	getCmd.Flags().IntP("port", "p", 0, "control API port of a running caracal instance")
	getCmd.Flags().StringP("batch", "b", "", "file containing URLs to download (one per line)")
	getCmd.Flags().Bool("paused", false, "submit the task without starting it")
	getCmd.Flags().IntP("connections", "c", 0, "worker count override (0: scheduler default)")
	getCmd.Flags().String("priority", "normal", "scheduling priority: lowest, low, normal, high, highest")
}
