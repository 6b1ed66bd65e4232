package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harunnryd/kuroko/cmd/kuroko/runtime"
)

func executeWithRuntime(cmd *cobra.Command, sessionID string, fn func(*runtime.Components) error) error {
	applyCommonFlags(cmd)
	workspaceID := runtime.ResolveWorkspaceID(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := runtime.Build(ctx, cfg, workspaceID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Stop()

	return fn(components)
}
