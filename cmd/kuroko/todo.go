package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harunnryd/kuroko/cmd/kuroko/runtime"
	"github.com/harunnryd/kuroko/internal/render"
	"github.com/harunnryd/kuroko/internal/store"
	"github.com/harunnryd/kuroko/internal/todo"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Inspect the workspace todo list",
}

var todoLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List todos",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := runtime.ResolveWorkspaceID(cmd, cfg)

		todoPath, err := store.GetTodoPath(workspaceID, cfg.Session.Root)
		if err != nil {
			return fmt.Errorf("failed to get todo path: %w", err)
		}

		todos, err := todo.NewStore(todoPath)
		if err != nil {
			return fmt.Errorf("failed to open todo store: %w", err)
		}

		status, _ := cmd.Flags().GetString("status")
		items, err := todos.List(status)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No todos found.")
			return nil
		}

		fmt.Println(render.New().TodoTable(items))
		summary := todos.Summary()
		fmt.Printf("Total: %d (%d pending, %d in progress, %d completed)\n",
			len(items), summary["pending"], summary["in_progress"], summary["completed"])
		return nil
	},
}

func init() {
	todoLsCmd.Flags().String("status", "", "filter by status (pending, in_progress, completed)")
	todoCmd.AddCommand(todoLsCmd)
	todoCmd.PersistentFlags().StringP("workspace", "w", "", "target workspace ID")
	rootCmd.AddCommand(todoCmd)
}
