package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/caracaldl/caracal/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a single task's detailed progress",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid task id %q\n", args[0])
			os.Exit(1)
		}
		port, err := requireRunningInstance()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		t, err := fetchTask(port, taskID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("task:      %d\n", t.TaskID)
		fmt.Printf("uri:       %s\n", t.URI)
		fmt.Printf("file:      %s\n", t.FilePath)
		fmt.Printf("state:     %s\n", t.State)
		fmt.Printf("priority:  %s\n", t.Priority)
		fmt.Printf("received:  %s / %s\n",
			utils.ConvertBytesToHumanReadable(int64(t.TotalReceived)),
			utils.ConvertBytesToHumanReadable(int64(t.ContentLength)))
		fmt.Printf("chunks:    %d / %d complete\n", t.CompletedChunks, t.TotalChunks)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
