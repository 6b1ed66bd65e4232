package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/harunnryd/kuroko/cmd/kuroko/runtime"
	"github.com/harunnryd/kuroko/internal/render"
	"github.com/harunnryd/kuroko/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
	Long:  `List and reset interactive sessions in the workspace.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := runtime.ResolveWorkspaceID(cmd, cfg)

		sessionsDir, err := store.GetSessionsDir(workspaceID, cfg.Session.Root)
		if err != nil {
			return fmt.Errorf("failed to get sessions directory: %w", err)
		}

		entries, err := os.ReadDir(sessionsDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No sessions found (workspace not initialized yet).")
				fmt.Println("\nRun 'kuroko run' to create your first session.")
				return nil
			}
			return fmt.Errorf("failed to read sessions directory: %w", err)
		}

		index := loadSessionIndex(sessionsDir)

		var sessions []store.SessionMeta
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			id := strings.TrimSuffix(entry.Name(), ".jsonl")
			if meta, ok := index.Sessions[id]; ok {
				sessions = append(sessions, meta)
			} else {
				sessions = append(sessions, store.SessionMeta{ID: id, Status: "active"})
			}
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			fmt.Println("\nRun 'kuroko run' to create your first session.")
			return nil
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		})

		fmt.Println(render.New().SessionTable(sessions))
		fmt.Printf("Total: %d session(s)\n", len(sessions))
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset [id]",
	Short: "Reset a session (delete its transcript)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		workspaceID := runtime.ResolveWorkspaceID(cmd, cfg)

		lockPath, err := store.GetLockPath(workspaceID, cfg.Session.Root)
		if err != nil {
			return fmt.Errorf("failed to get lock path: %w", err)
		}

		fileLock := flock.New(lockPath)
		locked, err := fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("workspace is locked by another Kuroko instance")
		}
		defer fileLock.Unlock()

		sessionsDir, err := store.GetSessionsDir(workspaceID, cfg.Session.Root)
		if err != nil {
			return fmt.Errorf("failed to get sessions directory: %w", err)
		}

		transcriptPath := filepath.Join(sessionsDir, sessionID+".jsonl")
		if err := os.Remove(transcriptPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete transcript: %w", err)
		}
		removeFromSessionIndex(sessionsDir, sessionID)

		fmt.Printf("✓ Session '%s' reset successfully.\n", sessionID)
		return nil
	},
}

func loadSessionIndex(sessionsDir string) store.SessionIndex {
	index := store.SessionIndex{Sessions: map[string]store.SessionMeta{}}
	data, err := os.ReadFile(filepath.Join(sessionsDir, "index.json"))
	if err != nil {
		return index
	}
	json.Unmarshal(data, &index)
	if index.Sessions == nil {
		index.Sessions = map[string]store.SessionMeta{}
	}
	return index
}

func removeFromSessionIndex(sessionsDir, sessionID string) {
	indexPath := filepath.Join(sessionsDir, "index.json")
	index := loadSessionIndex(sessionsDir)
	if _, ok := index.Sessions[sessionID]; !ok {
		return
	}
	delete(index.Sessions, sessionID)
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(indexPath, data, 0o644)
}

func init() {
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionCmd.PersistentFlags().StringP("workspace", "w", "", "target workspace ID")
	rootCmd.AddCommand(sessionCmd)
}
