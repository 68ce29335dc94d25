package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sheepbun/yips/internal/model"
)

// RegisterBuiltins adds the built-in tool set to r: file read/write/edit,
// recursive regex search, directory listing, and bounded shell execution.
// Their internals are not spec-mandated — only the dispatch contract
// (Registry.Execute / definitions()) is.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		def     model.ToolDefinition
		handler Handler
	}{
		{readFileDefinition(), readFileHandler},
		{writeFileDefinition(), writeFileHandler},
		{editFileDefinition(), editFileHandler},
		{grepDefinition(), grepHandler},
		{listDirDefinition(), listDirHandler},
		{shellExecDefinition(), shellExecHandler},
	}
	for _, b := range builtins {
		if err := r.Register(b.def, b.handler); err != nil {
			return fmt.Errorf("register builtin %q: %w", b.def.Name, err)
		}
	}
	return nil
}

func schemaString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func readFileDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "read_file",
		Description: "Read the full contents of a file at the given path.",
		Parameters: map[string]any{
			"type":       "object",
			"required":   []any{"path"},
			"properties": map[string]any{"path": schemaString("Path to the file to read.")},
		},
	}
}

func readFileHandler(_ context.Context, args json.RawMessage) (model.ToolOutput, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	return model.ToolOutput{Success: true, Content: string(data)}, nil
}

func writeFileDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file at the given path, creating or overwriting it.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []any{"path", "content"},
			"properties": map[string]any{
				"path":    schemaString("Path to the file to write."),
				"content": schemaString("Content to write."),
			},
		},
	}
}

func writeFileHandler(_ context.Context, args json.RawMessage) (model.ToolOutput, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(in.Path), 0o755); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	if err := os.WriteFile(in.Path, []byte(in.Content), 0o644); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	return model.ToolOutput{Success: true, Content: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}

func editFileDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace the first occurrence of old_text with new_text in a file.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []any{"path", "old_text", "new_text"},
			"properties": map[string]any{
				"path":     schemaString("Path to the file to edit."),
				"old_text": schemaString("Exact text to replace."),
				"new_text": schemaString("Replacement text."),
			},
		},
	}
}

func editFileHandler(_ context.Context, args json.RawMessage) (model.ToolOutput, error) {
	var in struct {
		Path    string `json:"path"`
		OldText string `json:"old_text"`
		NewText string `json:"new_text"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}

	original := string(data)
	if !strings.Contains(original, in.OldText) {
		return model.ToolOutput{Success: false, Content: "Error: old_text not found in file"}, nil
	}
	updated := strings.Replace(original, in.OldText, in.NewText, 1)

	if err := os.WriteFile(in.Path, []byte(updated), 0o644); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	return model.ToolOutput{Success: true, Content: "edited " + in.Path}, nil
}

func grepDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "grep",
		Description: "Recursively search files under a directory for a regular expression pattern.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []any{"pattern", "path"},
			"properties": map[string]any{
				"pattern": schemaString("Regular expression to search for."),
				"path":    schemaString("Directory to search under."),
			},
		},
	}
}

func grepHandler(ctx context.Context, args json.RawMessage) (model.ToolOutput, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}

	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}

	var matches []string
	walkErr := filepath.WalkDir(in.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d:%s", path, i+1, line))
			}
		}
		return nil
	})
	if walkErr != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + walkErr.Error()}, nil
	}

	return model.ToolOutput{Success: true, Content: strings.Join(matches, "\n")}, nil
}

func listDirDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "list_dir",
		Description: "List the entries of a directory.",
		Parameters: map[string]any{
			"type":       "object",
			"required":   []any{"path"},
			"properties": map[string]any{"path": schemaString("Directory to list.")},
		},
	}
}

func listDirHandler(_ context.Context, args json.RawMessage) (model.ToolOutput, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}

	entries, err := os.ReadDir(in.Path)
	if err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name()+"/")
		} else {
			names = append(names, e.Name())
		}
	}
	return model.ToolOutput{Success: true, Content: strings.Join(names, "\n")}, nil
}

func shellExecDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        "shell_exec",
		Description: "Run a shell command with a bounded timeout and return its combined output.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []any{"command"},
			"properties": map[string]any{
				"command":      schemaString("Shell command line to run."),
				"timeout_secs": map[string]any{"type": "number", "description": "Timeout in seconds, default 30."},
			},
		},
	}
}

func shellExecHandler(ctx context.Context, args json.RawMessage) (model.ToolOutput, error) {
	var in struct {
		Command     string  `json:"command"`
		TimeoutSecs float64 `json:"timeout_secs"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error()}, nil
	}
	timeout := 30 * time.Second
	if in.TimeoutSecs > 0 {
		timeout = time.Duration(in.TimeoutSecs * float64(time.Second))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", in.Command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if runCtx.Err() != nil {
		return model.ToolOutput{Success: false, Content: fmt.Sprintf("Error: command timed out after %s", timeout)}, nil
	}
	if err != nil {
		return model.ToolOutput{Success: false, Content: "Error: " + err.Error() + "\n" + out.String()}, nil
	}
	return model.ToolOutput{Success: true, Content: out.String()}, nil
}
