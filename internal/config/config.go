package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/kuroko/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Model        ModelConfig        `koanf:"model"`
	Context      ContextConfig      `koanf:"context"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Session      SessionConfig      `koanf:"session"`
	Store        StoreConfig        `koanf:"store"`
	Tools        ToolsConfig        `koanf:"tools"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

type ModelConfig struct {
	Name           string `koanf:"name"`
	Host           string `koanf:"host"`
	ConnectTimeout string `koanf:"connect_timeout"`
	IdleTimeout    string `koanf:"idle_timeout"`
}

type ContextConfig struct {
	TokenBudget int `koanf:"token_budget"`
}

type OrchestratorConfig struct {
	MaxRounds int  `koanf:"max_rounds"`
	NoTools   bool `koanf:"no_tools"`
}

type SessionConfig struct {
	Save       bool   `koanf:"save"`
	MaxHistory int    `koanf:"max_history"`
	Workspace  string `koanf:"workspace"`
	Root       string `koanf:"root"`
}

type StoreConfig struct {
	LockTimeout              string `koanf:"lock_timeout"`
	LockRetry                string `koanf:"lock_retry"`
	LockMaxRetry             int    `koanf:"lock_max_retry"`
	TranscriptRotateMaxBytes int64  `koanf:"transcript_rotate_max_bytes"`
}

type ToolsConfig struct {
	Exec   ExecToolConfig   `koanf:"exec"`
	Search SearchToolConfig `koanf:"search"`
}

type ExecToolConfig struct {
	Timeout string `koanf:"timeout"`
}

type SearchToolConfig struct {
	BaseURL    string `koanf:"base_url"`
	Timeout    string `koanf:"timeout"`
	MaxResults int    `koanf:"max_results"`
}

const (
	DefaultWorkspaceID              = "default"
	DefaultServerLogLevel           = "info"
	DefaultModelName                = "qwen3:30b-a3b-instruct-2507-q4_K_M"
	DefaultModelHost                = "localhost:11434"
	DefaultModelConnectTimeout      = "30s"
	DefaultModelIdleTimeout         = "60s"
	DefaultContextTokenBudget       = 8000
	DefaultOrchestratorMaxRounds    = 25
	DefaultSessionSave              = true
	DefaultSessionMaxHistory        = 50
	DefaultStoreLockTimeout         = "30s"
	DefaultStoreLockRetry           = "100ms"
	DefaultStoreLockMaxRetry        = 300
	DefaultStoreTranscriptMaxBytes  = 10 * 1024 * 1024
	DefaultExecToolTimeout          = "30s"
	DefaultSearchToolBaseURL        = "https://api.duckduckgo.com"
	DefaultSearchToolTimeout        = "10s"
	DefaultSearchToolMaxResults     = 5
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.log_level":                  DefaultServerLogLevel,
		"model.name":                        DefaultModelName,
		"model.host":                        DefaultModelHost,
		"model.connect_timeout":             DefaultModelConnectTimeout,
		"model.idle_timeout":                DefaultModelIdleTimeout,
		"context.token_budget":              DefaultContextTokenBudget,
		"orchestrator.max_rounds":           DefaultOrchestratorMaxRounds,
		"orchestrator.no_tools":             false,
		"session.save":                      DefaultSessionSave,
		"session.max_history":               DefaultSessionMaxHistory,
		"session.workspace":                 DefaultWorkspaceID,
		"session.root":                      "",
		"store.lock_timeout":                DefaultStoreLockTimeout,
		"store.lock_retry":                  DefaultStoreLockRetry,
		"store.lock_max_retry":              DefaultStoreLockMaxRetry,
		"store.transcript_rotate_max_bytes": int64(DefaultStoreTranscriptMaxBytes),
		"tools.exec.timeout":                DefaultExecToolTimeout,
		"tools.search.base_url":             DefaultSearchToolBaseURL,
		"tools.search.timeout":              DefaultSearchToolTimeout,
		"tools.search.max_results":          DefaultSearchToolMaxResults,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".kuroko", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("KUROKO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "KUROKO_")), "_", ".", -1)
	}), nil)

	// Only dot-named flags map into config keys; plain flags like
	// --model are folded in by the commands themselves.
	if cmd != nil {
		k.Load(posflag.ProviderWithFlag(cmd.Flags(), ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !strings.Contains(f.Name, ".") {
				return "", nil
			}
			return f.Name, posflag.FlagVal(cmd.Flags(), f)
		}), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	root, err := pathutil.Expand(cfg.Session.Root)
	if err != nil {
		return nil, err
	}
	cfg.Session.Root = root

	return &cfg, nil
}
