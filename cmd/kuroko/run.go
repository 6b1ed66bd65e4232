package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harunnryd/kuroko/cmd/kuroko/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Start Kuroko in interactive mode, or answer a single prompt",
	Long: `Start an interactive chat session with the model. When a prompt is
given as arguments, answer it once and exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		return executeWithRuntime(cmd, sessionID, func(r *runtime.Components) error {
			repl := runtime.NewREPL(r)

			if len(args) > 0 {
				return repl.RunOnce(strings.Join(args, " "))
			}
			return repl.Start()
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addCommonFlags(runCmd)
	runCmd.Flags().String("session", "", "session ID to resume")
}
