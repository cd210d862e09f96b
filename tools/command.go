package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

// ============================================================================
// COMMAND BACKEND
// ============================================================================

// CommandBackend serves the execute_command tool. Only allowlisted
// executables run; everything else fails validation before exec.
type CommandBackend struct {
	allowed    map[string]bool
	workingDir string
	maxRunTime time.Duration
}

type executeCommandArgs struct {
	Command string   `json:"command" jsonschema:"required,description=Executable to run"`
	Args    []string `json:"args" jsonschema:"description=Arguments passed to the executable"`
}

// NewCommandBackend creates a command backend from configuration.
func NewCommandBackend(cfg config.ToolConfig) *CommandBackend {
	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		allowed[c] = true
	}
	return &CommandBackend{
		allowed:    allowed,
		workingDir: cfg.WorkingDirectory,
		maxRunTime: time.Duration(cfg.MaxExecutionTime) * time.Second,
	}
}

// Name implements Backend.
func (b *CommandBackend) Name() string { return "command" }

// Tools implements Backend.
func (b *CommandBackend) Tools() []Definition {
	return []Definition{
		{
			Name:        "execute_command",
			Description: fmt.Sprintf("Run an allowlisted command (%s)", strings.Join(b.allowedList(), ", ")),
			InputSchema: schemaFor(&executeCommandArgs{}),
		},
	}
}

func (b *CommandBackend) allowedList() []string {
	out := make([]string, 0, len(b.allowed))
	for c := range b.allowed {
		out = append(out, c)
	}
	return out
}

// Execute implements Backend.
func (b *CommandBackend) Execute(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	if tool != "execute_command" {
		return ToolResult{}, core.NewNotFoundError("tool", tool)
	}
	var in executeCommandArgs
	if err := decodeArgs(tool, schemaFor(&executeCommandArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	if !b.allowed[in.Command] {
		return ToolResult{}, core.NewValidationError("tools", "command",
			fmt.Sprintf("command %q is not allowlisted", in.Command))
	}

	if b.maxRunTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.maxRunTime)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, in.Command, in.Args...)
	cmd.Dir = b.workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := ToolResult{
		Success: err == nil,
		Content: stdout.String(),
		Metadata: map[string]any{
			"command":   in.Command,
			"exit_code": exitCode,
			"stderr":    stderr.String(),
		},
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Sprintf("command %q timed out after %s", in.Command, b.maxRunTime)
		} else {
			result.Error = err.Error()
		}
		return result, nil
	}
	return result, nil
}

// HealthCheck implements Backend.
func (b *CommandBackend) HealthCheck(ctx context.Context) error {
	if len(b.allowed) == 0 {
		return fmt.Errorf("no commands are allowlisted")
	}
	return nil
}
