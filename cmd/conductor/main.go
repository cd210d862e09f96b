// Command conductor runs the multi-agent orchestration engine.
//
// Usage:
//
//	conductor serve --config config.yaml
//	conductor run --agent code-generator "implement the parser"
//	conductor workflow --config config.yaml deploy-pipeline
//	conductor validate --config config.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/distributor"
	"github.com/oliver-os/conductor/logger"
	"github.com/oliver-os/conductor/orchestrator"
	"github.com/oliver-os/conductor/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
	Run      RunCmd      `cmd:"" help:"Run a single task and print the result."`
	Workflow WorkflowCmd `cmd:"" help:"Execute a configured workflow."`
	Agents   AgentsCmd   `cmd:"" help:"List the agent catalog."`
	Tools    ToolsCmd    `cmd:"" help:"List registered tools."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or text)." default:"simple"`
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("conductor version %s\n", version)
	return nil
}

// ValidateCmd checks a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration valid: %d tool backend(s), %d workflow(s)\n",
		len(cfg.Tools), len(cfg.Workflows))
	return nil
}

// AgentsCmd lists the agent catalog.
type AgentsCmd struct{}

func (c *AgentsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	engine, err := orchestrator.New(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer engine.Shutdown(context.Background())

	for _, def := range engine.Catalog().List() {
		caps := make([]string, 0, len(def.Capabilities))
		for _, cap := range def.Capabilities {
			caps = append(caps, string(cap))
		}
		fmt.Printf("%-26s %s\n", def.ID, strings.Join(caps, ", "))
	}
	return nil
}

// ToolsCmd lists registered tools.
type ToolsCmd struct{}

func (c *ToolsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	engine, err := orchestrator.New(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer engine.Shutdown(context.Background())

	for _, info := range engine.ListTools() {
		fmt.Printf("%-20s [%s] %s\n", info.Name, info.Backend, info.Description)
	}
	return nil
}

// RunCmd runs one task through the engine.
type RunCmd struct {
	Agent  string   `help:"Agent type to run the task on." default:"code-generator"`
	Prompt []string `arg:"" help:"Task prompt."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	ctx := context.Background()
	engine, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Shutdown(ctx)

	prompt := strings.Join(c.Prompt, " ")
	result := engine.RunTask(ctx, distributor.TaskDefinition{
		Name:           prompt,
		Description:    prompt,
		AssignedAgents: []string{c.Agent},
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Success {
		return fmt.Errorf("task failed: %s", result.Error)
	}
	return nil
}

// WorkflowCmd executes a workflow defined in the configuration.
type WorkflowCmd struct {
	Name string `arg:"" help:"Workflow name from the configuration."`
}

func (c *WorkflowCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	ctx := context.Background()
	engine, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Shutdown(ctx)

	var workflowID string
	for _, def := range engine.ListWorkflows() {
		if def.Name == c.Name {
			workflowID = def.ID
			break
		}
	}
	if workflowID == "" {
		return fmt.Errorf("workflow %q is not defined in the configuration", c.Name)
	}

	result, err := engine.ExecuteWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)." default:"0"`
	Watch bool `help:"Watch the config file and log when it changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	engine, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Shutdown(context.Background())

	if c.Watch && cli.Config != "" {
		watcher, err := config.NewWatcher(cli.Config)
		if err != nil {
			return err
		}
		defer watcher.Close()
		changes, err := watcher.Watch(ctx)
		if err != nil {
			return err
		}
		go func() {
			for range changes {
				slog.Info("Configuration changed on disk; restart to apply", "path", cli.Config)
			}
		}()
	}

	srv := server.New(engine, cfg.Server, logger.GetLogger())
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	fmt.Printf("conductor ready on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Status:  http://%s:%d/v1/status\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Health:  http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics: http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)
	}
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start()
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("conductor"),
		kong.Description("conductor - multi-agent task and workflow orchestration engine"),
		kong.UsageOnError(),
	)

	var output = os.Stderr
	var cleanup func()
	if cli.LogFile != "" {
		file, c, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		output = file
		cleanup = c
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)
	if cleanup != nil {
		defer cleanup()
	}

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
