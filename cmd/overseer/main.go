package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/bytemill/overseer/internal/admission"
	"github.com/bytemill/overseer/internal/api"
	"github.com/bytemill/overseer/internal/config"
	"github.com/bytemill/overseer/internal/events"
	"github.com/bytemill/overseer/internal/gate"
	"github.com/bytemill/overseer/internal/lock"
	"github.com/bytemill/overseer/internal/log"
	"github.com/bytemill/overseer/internal/pipeline"
	"github.com/bytemill/overseer/internal/pipeline/agentgen"
	"github.com/bytemill/overseer/internal/storage"
	"github.com/bytemill/overseer/internal/store"
	"github.com/bytemill/overseer/internal/supervise"
	"github.com/bytemill/overseer/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "status":
		return runStatus(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("overseer starting", "version", version, "config", *configPath)

	fingerprint, err := config.Fingerprint(*configPath)
	if err != nil {
		logger.Error("failed to fingerprint config", "error", err)
		return 1
	}

	pidLock, err := lock.AcquirePIDLock(cfg.Service.LockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", cfg.Service.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", cfg.Service.LockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	hub := events.NewHub(256)

	adm := admission.New(admission.Config{
		MaxConcurrent:        cfg.Agent.MaxConcurrentSessions,
		MaxRequestsPerMinute: cfg.Admission.MaxRequestsPerMinute,
		MaxTokensPerMinute:   cfg.Admission.MaxTokensPerMinute,
		SlidingWindow:        cfg.Admission.SlidingWindow,
		StaleRecordRetention: cfg.Admission.StaleRecordRetention,
		SafetyMargin:         cfg.Admission.SafetyMargin,
	}, hub)
	adm.StartSweeper(ctx)

	tasks := store.NewTasks(db)
	agents := store.NewAgents(db)
	sessions := store.NewSessions(db)
	budget := store.NewBudget(db)
	runs := store.NewRuns(db)

	supervisor := supervise.New(cfg, supervise.Deps{
		Admission: adm,
		Tasks:     tasks,
		Agents:    agents,
		Sessions:  sessions,
		Budget:    budget,
		Gate:      gate.New(cfg.Gate, sessions),
		Notify:    supervise.NewLogNotifier(),
		Hub:       hub,
	})

	if err := supervisor.RecoverOrphanedSessions(ctx); err != nil {
		logger.Error("orphaned session recovery failed", "error", err)
		return 1
	}

	// Pipeline layers are generated by agent sessions spawned under a
	// dedicated agent identity.
	const pipelineAgentID = "pipeline"
	if err := agents.UpdateAgentStatus(ctx, pipelineAgentID, "idle"); err != nil {
		logger.Error("failed to register pipeline agent", "error", err)
		return 1
	}
	orchestrator := pipeline.New(runs, hub)
	for _, kind := range pipeline.Layers() {
		gen, err := agentgen.New(kind, supervisor, tasks, pipelineAgentID)
		if err != nil {
			logger.Error("failed to build layer generator", "layer", kind, "error", err)
			return 1
		}
		if err := orchestrator.RegisterGenerator(gen); err != nil {
			logger.Error("failed to register layer generator", "layer", kind, "error", err)
			return 1
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:            cfg.API.Listen,
			APIKey:            cfg.API.APIKey,
			ConfigFingerprint: fingerprint,
		}, supervisor, adm, runs, orchestrator, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
	} else {
		logger.Warn("API disabled, sessions can only be spawned programmatically")
	}

	logger.Info("overseer ready",
		"max_concurrent", cfg.Agent.MaxConcurrentSessions,
		"models", strings.Join(cfg.Agent.ModelFallbackChain, ","),
		"api_enabled", cfg.API.Enabled,
	)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	// Give in-flight sessions a moment to observe cancellation.
	time.Sleep(200 * time.Millisecond)
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", "http://127.0.0.1:8090", "Base URL of the overseer API")
	apiKey := fs.String("key", os.Getenv("OVERSEER_API_KEY"), "API key (defaults to $OVERSEER_API_KEY)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if err := watch.Run(strings.TrimRight(*apiURL, "/"), *apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

type statusReport struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid,omitempty"`
	APIReached  bool   `json:"api_reached"`
	Health      any    `json:"health,omitempty"`
	LockPath    string `json:"lock_path"`
	ConfigError string `json:"config_error,omitempty"`
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output status as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	report := statusReport{}

	cfg, err := config.Load(*configPath)
	if err != nil {
		report.ConfigError = err.Error()
		printStatus(report, *jsonOut)
		return 1
	}
	report.LockPath = cfg.Service.LockPath

	if pid, err := lock.ReadHolderPID(cfg.Service.LockPath); err == nil && pid > 0 {
		// The file may be stale; probing the process settles it.
		if proc, err := os.FindProcess(pid); err == nil && proc.Signal(syscall.Signal(0)) == nil {
			report.Running = true
			report.PID = pid
		}
	}

	if cfg.API.Enabled {
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get("http://" + cfg.API.Listen + "/healthz")
		if err == nil {
			defer resp.Body.Close()
			var health map[string]any
			if json.NewDecoder(resp.Body).Decode(&health) == nil {
				report.APIReached = true
				report.Health = health
			}
		}
	}

	printStatus(report, *jsonOut)
	if !report.Running {
		return 1
	}
	return 0
}

func printStatus(report statusReport, jsonOut bool) {
	if jsonOut {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}

	if report.ConfigError != "" {
		fmt.Printf("config error: %s\n", report.ConfigError)
		return
	}
	if report.Running {
		fmt.Printf("overseer running (pid %d)\n", report.PID)
	} else {
		fmt.Println("overseer not running")
	}
	if report.APIReached {
		fmt.Println("api: reachable")
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: overseer version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("overseer %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`overseer - execution coordinator for autonomous coding agents

Usage: overseer <command> [flags]

Commands:
  start     Start the overseer daemon
  watch     Live TUI monitor over a running daemon's API
  status    Report daemon and API status
  version   Print version metadata

Flags:
  start   --config <path>           Configuration file (default config.yaml)
  watch   --api <url> --key <key>   API endpoint and bearer token
  status  --config <path> --json    Status report, optionally as JSON
  version --json                    Version metadata as JSON
`)
}
