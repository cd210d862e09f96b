package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

// ============================================================================
// FILE BACKEND
// ============================================================================

// FileBackend serves workspace file tools. Every path argument is resolved
// inside the configured workspace root; escape attempts fail validation.
type FileBackend struct {
	root        string
	maxFileSize int64
}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path of the file to read, relative to the workspace root"`
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Path of the file to write, relative to the workspace root"`
	Content string `json:"content" jsonschema:"required,description=Content to write"`
}

type listDirectoryArgs struct {
	Path string `json:"path" jsonschema:"description=Directory to list, relative to the workspace root (defaults to the root)"`
}

// NewFileBackend creates a file backend rooted at cfg.WorkspaceRoot.
func NewFileBackend(cfg config.ToolConfig) (*FileBackend, error) {
	root, err := filepath.Abs(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return &FileBackend{
		root:        root,
		maxFileSize: cfg.MaxFileSize,
	}, nil
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }

// Tools implements Backend.
func (b *FileBackend) Tools() []Definition {
	return []Definition{
		{
			Name:        "read_file",
			Description: "Read a file from the workspace",
			InputSchema: schemaFor(&readFileArgs{}),
		},
		{
			Name:        "write_file",
			Description: "Write a file inside the workspace, creating parent directories as needed",
			InputSchema: schemaFor(&writeFileArgs{}),
		},
		{
			Name:        "list_directory",
			Description: "List the entries of a workspace directory",
			InputSchema: schemaFor(&listDirectoryArgs{}),
		},
	}
}

// Execute implements Backend.
func (b *FileBackend) Execute(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	switch tool {
	case "read_file":
		return b.readFile(args)
	case "write_file":
		return b.writeFile(args)
	case "list_directory":
		return b.listDirectory(args)
	default:
		return ToolResult{}, core.NewNotFoundError("tool", tool)
	}
}

// HealthCheck implements Backend.
func (b *FileBackend) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return fmt.Errorf("workspace root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace root is not a directory: %s", b.root)
	}
	return nil
}

// resolve maps a tool-supplied path into the workspace and rejects escapes.
func (b *FileBackend) resolve(path string) (string, error) {
	if path == "" {
		return b.root, nil
	}
	resolved := filepath.Join(b.root, filepath.Clean("/"+path))
	rel, err := filepath.Rel(b.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", core.NewValidationError("tools", "path",
			fmt.Sprintf("path escapes the workspace: %s", path))
	}
	return resolved, nil
}

func (b *FileBackend) readFile(args map[string]any) (ToolResult, error) {
	var in readFileArgs
	if err := decodeArgs("read_file", schemaFor(&readFileArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	path, err := b.resolve(in.Path)
	if err != nil {
		return ToolResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to stat %s: %w", in.Path, err)
	}
	if b.maxFileSize > 0 && info.Size() > b.maxFileSize {
		return ToolResult{}, core.NewValidationError("tools", "path",
			fmt.Sprintf("file %s exceeds the %d byte limit", in.Path, b.maxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to read %s: %w", in.Path, err)
	}
	return ToolResult{
		Success: true,
		Content: string(data),
		Metadata: map[string]any{
			"path": in.Path,
			"size": info.Size(),
		},
	}, nil
}

func (b *FileBackend) writeFile(args map[string]any) (ToolResult, error) {
	var in writeFileArgs
	if err := decodeArgs("write_file", schemaFor(&writeFileArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	if b.maxFileSize > 0 && int64(len(in.Content)) > b.maxFileSize {
		return ToolResult{}, core.NewValidationError("tools", "content",
			fmt.Sprintf("content exceeds the %d byte limit", b.maxFileSize))
	}
	path, err := b.resolve(in.Path)
	if err != nil {
		return ToolResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ToolResult{}, fmt.Errorf("failed to create parent directories for %s: %w", in.Path, err)
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return ToolResult{}, fmt.Errorf("failed to write %s: %w", in.Path, err)
	}
	return ToolResult{
		Success: true,
		Content: fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.Path),
		Metadata: map[string]any{
			"path":  in.Path,
			"bytes": len(in.Content),
		},
	}, nil
}

func (b *FileBackend) listDirectory(args map[string]any) (ToolResult, error) {
	var in listDirectoryArgs
	if err := decodeArgs("list_directory", schemaFor(&listDirectoryArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	path, err := b.resolve(in.Path)
	if err != nil {
		return ToolResult{}, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to list %s: %w", in.Path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return ToolResult{
		Success: true,
		Content: strings.Join(names, "\n"),
		Metadata: map[string]any{
			"path":    in.Path,
			"entries": len(names),
		},
	}, nil
}
