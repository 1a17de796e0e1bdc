package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemTool manages files below Root. Paths escaping Root are refused.
type FilesystemTool struct {
	Root string
}

func NewFilesystemTool(root string) (*FilesystemTool, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &FilesystemTool{Root: absRoot}, nil
}

func (f *FilesystemTool) Name() string {
	return "file"
}

func (f *FilesystemTool) Description() string {
	return "Manage files in the local workspace: read, write, append, list, delete, and mkdir."
}

func (f *FilesystemTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"enum":        []string{"read", "write", "append", "list", "delete", "mkdir"},
				"description": "The operation to perform",
			},
			"filename": map[string]any{
				"type":        "string",
				"description": "Path relative to the workspace root",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write (only for 'write' and 'append')",
			},
		},
		"required": []string{"command", "filename"},
	}
}

func (f *FilesystemTool) resolve(name string) (string, error) {
	target := filepath.Join(f.Root, name)
	rel, err := filepath.Rel(f.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

func (f *FilesystemTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command  string `json:"command"`
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}

	targetPath, err := f.resolve(args.Filename)
	if err != nil {
		return "", err
	}

	switch args.Command {
	case "read":
		data, err := os.ReadFile(targetPath)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return truncate(string(data)), nil
	case "write":
		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(targetPath, []byte(args.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		return fmt.Sprintf("Successfully wrote to %s", args.Filename), nil
	case "append":
		fh, err := os.OpenFile(targetPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return "", fmt.Errorf("failed to open file: %w", err)
		}
		defer fh.Close()
		if _, err := fh.WriteString(args.Content); err != nil {
			return "", fmt.Errorf("failed to append: %w", err)
		}
		return fmt.Sprintf("Successfully appended to %s", args.Filename), nil
	case "list":
		entries, err := os.ReadDir(targetPath)
		if err != nil {
			return "", fmt.Errorf("failed to list directory: %w", err)
		}
		var b strings.Builder
		for _, entry := range entries {
			typeStr := "file"
			if entry.IsDir() {
				typeStr = "dir"
			}
			fmt.Fprintf(&b, "[%s] %s\n", typeStr, entry.Name())
		}
		if b.Len() == 0 {
			return "Directory is empty", nil
		}
		return b.String(), nil
	case "delete":
		if targetPath == f.Root {
			return "", fmt.Errorf("refusing to delete the workspace root")
		}
		if err := os.Remove(targetPath); err != nil {
			return "", fmt.Errorf("failed to delete: %w", err)
		}
		return fmt.Sprintf("Successfully deleted %s", args.Filename), nil
	case "mkdir":
		if err := os.MkdirAll(targetPath, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		return fmt.Sprintf("Successfully created directory %s", args.Filename), nil
	default:
		return "", fmt.Errorf("invalid command %q: use read, write, append, list, delete or mkdir", args.Command)
	}
}
