package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toolcore "github.com/harunnryd/kuroko/internal/tool"
)

const maxReadFileBytes = 4 << 20

func init() {
	toolcore.RegisterBuiltin("read_file", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ReadFileTool{}, nil
	})

	toolcore.RegisterBuiltin("write_file", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &WriteFileTool{}, nil
	})

	toolcore.RegisterBuiltin("list_directory", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ListDirectoryTool{}, nil
	})
}

// ReadFileTool returns the contents of a file on disk.
type ReadFileTool struct{}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a text file at the given path."
}

func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path := strings.TrimSpace(args.Path)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxReadFileBytes {
		return nil, fmt.Errorf("%s is too large to read (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"path":    path,
		"content": string(data),
	})
}

// WriteFileTool writes content to a file, creating parent directories as needed.
type WriteFileTool struct{}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write content to a file at the given path. Creates parent directories and overwrites existing files."
}

func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Full file content to write",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path := strings.TrimSpace(args.Path)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"path":    path,
		"message": fmt.Sprintf("Wrote %d bytes to %s", len(args.Content), path),
	})
}

// ListDirectoryTool lists the entries of a directory.
type ListDirectoryTool struct{}

func (t *ListDirectoryTool) Name() string { return "list_directory" }

func (t *ListDirectoryTool) Description() string {
	return "List the entries of a directory. Defaults to the current directory."
}

func (t *ListDirectoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory path to list (default \".\")",
			},
		},
	}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path := strings.TrimSpace(args.Path)
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		kind := "file"
		if entry.IsDir() {
			kind = "directory"
		}
		var size int64
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			size = info.Size()
		}
		items = append(items, map[string]interface{}{
			"name": entry.Name(),
			"type": kind,
			"size": size,
			"path": filepath.Join(path, entry.Name()),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i]["name"].(string) < items[j]["name"].(string)
	})

	return json.Marshal(map[string]interface{}{
		"path":  path,
		"items": items,
	})
}
