package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/caracaldl/caracal/internal/utils"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tasks known to the running caracal instance",
	Long: "List tasks known to the running caracal instance.\n\n" +
		"By default only active tasks (pending, downloading, paused) are shown.\n" +
		"--all additionally surfaces completed/canceled/failed tasks, including\n" +
		"ones no longer held in memory but still recorded in the history store.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		state := lsStateFilter(cmd)

		if watch {
			for {
				fmt.Print("\033[H\033[2J")
				printTasks(jsonOutput, state)
				time.Sleep(time.Second)
			}
		}

		printTasks(jsonOutput, state)
	},
}

// lsStateFilter maps the mutually-exclusive --all/--completed/--paused
// flags to the server's ?state= query value.
func lsStateFilter(cmd *cobra.Command) string {
	all, _ := cmd.Flags().GetBool("all")
	completed, _ := cmd.Flags().GetBool("completed")
	paused, _ := cmd.Flags().GetBool("paused")
	switch {
	case completed:
		return "completed"
	case paused:
		return "paused"
	case all:
		return "all"
	default:
		return ""
	}
}

func printTasks(jsonOutput bool, state string) {
	port, err := requireRunningInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tasks, err := fetchTasksByState(port, state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(tasks, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tPRIORITY\tPROGRESS\tFILE")
	for _, t := range tasks {
		progress := "-"
		if t.ContentLength > 0 {
			progress = fmt.Sprintf("%d%% (%s/%s)", t.TotalReceived*100/t.ContentLength,
				utils.ConvertBytesToHumanReadable(int64(t.TotalReceived)),
				utils.ConvertBytesToHumanReadable(int64(t.ContentLength)))
		}
		state := t.State
		if t.Historical {
			state += " (history)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.TaskID, state, t.Priority, progress, t.FilePath)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("json", false, "output in JSON format")
	lsCmd.Flags().Bool("watch", false, "refresh every second")
	lsCmd.Flags().Bool("all", false, "include completed, canceled and failed tasks")
	lsCmd.Flags().Bool("completed", false, "show only completed tasks")
	lsCmd.Flags().Bool("paused", false, "show only paused tasks")
}
