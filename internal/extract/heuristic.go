package extract

import (
	"encoding/json"
	"strings"

	"github.com/google/shlex"

	"github.com/harunnryd/kuroko/internal/tool"
)

// intentRule pairs a predicate over the user's utterance with a call
// builder. Rules are tried in order; the first match wins. The table is
// deliberately narrow: it never infers writes, because extracting file
// content from prose is unsafe guesswork, and it never infers arbitrary
// shell commands.
type intentRule struct {
	name  string
	match func(input string) (map[string]string, bool)
	build func(args map[string]string) tool.Request
}

// safeCommands are the only shell invocations the heuristic tier will
// ever run verbatim. All of them are read-only.
var safeCommands = map[string][]string{
	"ls":         nil,
	"pwd":        nil,
	"git status": nil,
	"git log":    {"--oneline", "-n", "20"},
	"git diff":   nil,
	"git branch": nil,
}

func (e *Extractor) fromIntent(input string) []tool.Request {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	for _, rule := range e.rules {
		args, ok := rule.match(trimmed)
		if !ok {
			continue
		}
		req := rule.build(args)
		if !e.registry.Has(req.Name) {
			return nil
		}
		return []tool.Request{req}
	}
	return nil
}

func defaultIntentRules() []intentRule {
	return []intentRule{
		{
			name:  "list-directory",
			match: matchListDirectory,
			build: buildCall("list_directory"),
		},
		{
			name:  "read-file",
			match: matchReadFile,
			build: buildCall("read_file"),
		},
		{
			name:  "list-todos",
			match: matchListTodos,
			build: buildCall("list_todos"),
		},
		{
			name:  "web-search",
			match: matchWebSearch,
			build: buildCall("web_search"),
		},
		{
			name:  "safe-command",
			match: matchSafeCommand,
			build: buildCall("run_command"),
		},
	}
}

func buildCall(name string) func(args map[string]string) tool.Request {
	return func(args map[string]string) tool.Request {
		raw, _ := json.Marshal(args)
		return tool.Request{Name: name, Arguments: raw}
	}
}

// "list files in X", "list the files in X", "show directory X",
// "what files are in X". The path defaults to the current directory.
func matchListDirectory(input string) (map[string]string, bool) {
	lower := strings.ToLower(input)

	prefixes := []string{
		"list files in ",
		"list the files in ",
		"list directory ",
		"list the directory ",
		"show directory ",
		"show the directory ",
		"what files are in ",
		"what's in ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			path := cleanPathArg(input[len(prefix):])
			if path == "" {
				path = "."
			}
			return map[string]string{"path": path}, true
		}
	}

	switch lower {
	case "list files", "list directory", "show files":
		return map[string]string{"path": "."}, true
	}
	return nil, false
}

// "read file X", "read the file X", "show me file X", "cat X".
func matchReadFile(input string) (map[string]string, bool) {
	lower := strings.ToLower(input)

	prefixes := []string{
		"read file ",
		"read the file ",
		"show me file ",
		"show me the file ",
		"open file ",
		"cat ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			path := cleanPathArg(input[len(prefix):])
			if path == "" || strings.ContainsAny(path, " \t") {
				return nil, false
			}
			return map[string]string{"path": path}, true
		}
	}
	return nil, false
}

func matchListTodos(input string) (map[string]string, bool) {
	switch strings.ToLower(strings.TrimRight(input, ".!?")) {
	case "list todos", "list my todos", "show todos", "show my todos",
		"todo list", "show todo list", "what's on my todo list":
		return map[string]string{}, true
	}
	return nil, false
}

// "search for X", "search the web for X", "look up X".
func matchWebSearch(input string) (map[string]string, bool) {
	lower := strings.ToLower(input)

	prefixes := []string{
		"search the web for ",
		"search for ",
		"web search for ",
		"look up ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			query := strings.TrimSpace(input[len(prefix):])
			if query == "" {
				return nil, false
			}
			return map[string]string{"query": query}, true
		}
	}
	return nil, false
}

// matchSafeCommand accepts only exact members of the safe-command table.
// The utterance must tokenize cleanly so quoted trickery never sneaks an
// extra argument past the allow list.
func matchSafeCommand(input string) (map[string]string, bool) {
	words, err := shlex.Split(strings.ToLower(input))
	if err != nil || len(words) == 0 || len(words) > 2 {
		return nil, false
	}
	candidate := strings.Join(words, " ")

	extra, ok := safeCommands[candidate]
	if !ok {
		return nil, false
	}

	command := candidate
	if len(extra) > 0 {
		command = candidate + " " + strings.Join(extra, " ")
	}
	return map[string]string{"command": command}, true
}

func cleanPathArg(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!?")
	s = strings.Trim(s, "'\"`")
	return strings.TrimSpace(s)
}
