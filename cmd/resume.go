package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [task-id]",
	Short: "Resume a paused task, or every paused task with --all",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		port, err := requireRunningInstance()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		all, _ := cmd.Flags().GetBool("all")
		if all {
			if err := resumeAllTasksRemote(port); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("all paused tasks resumed")
			return
		}

		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Error: resume requires a task id, or --all")
			os.Exit(1)
		}
		taskID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid task id %q\n", args[0])
			os.Exit(1)
		}
		if err := resumeTaskRemote(port, taskID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("task %d resumed\n", taskID)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.Flags().Bool("all", false, "resume every paused task")
}
