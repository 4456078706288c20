package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/agent"
	"github.com/coxlabs/coxswain/internal/classify"
	"github.com/coxlabs/coxswain/internal/config"
	"github.com/coxlabs/coxswain/internal/gates"
	"github.com/coxlabs/coxswain/internal/logging"
	"github.com/coxlabs/coxswain/internal/memory"
	"github.com/coxlabs/coxswain/internal/runner"
	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/pkg/models"
)

var (
	runPRDPath  string
	runResume   bool
	runExecutor string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start or resume a run over the backlog",
	Long: `Start a new run over the prd.json backlog, or resume an existing one.

A new run copies the backlog into .coxswain/runs/<run-id>/ and drives each
item through implementation and the quality-validation loop. Use --resume
(with --run to pick a specific run) to continue after a pause, rollback,
or interruption.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPRDPath, "prd", "prd.json", "Backlog file for a new run")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume an existing run instead of starting a new one")
	runCmd.Flags().StringVar(&runExecutor, "executor", "", "Executor backend: api or manual (overrides config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var runID string
	var st *store.Store
	if runResume || runFlag != "" {
		runID, st, err = resolveRun(root)
		if err != nil {
			return err
		}
	} else {
		runID, st, err = newRun(root)
		if err != nil {
			return err
		}
		fmt.Printf("%s started run %s\n", color.GreenString("✓"), runID)
	}

	if pid, alive := st.LockHolder(); alive {
		return fmt.Errorf("run %s is already being driven by pid %d", runID, pid)
	}
	if err := setCurrentRun(root, runID); err != nil {
		return err
	}

	logPath := cfg.Logging.DebugLog
	if logPath == "" {
		logPath = filepath.Join(stateDir(root), "logs", "run.log")
	}
	logger, err := logging.New(logPath)
	if err != nil {
		return err
	}
	defer logger.Close()

	executor, err := buildExecutor(cfg)
	if err != nil {
		return err
	}

	gateRunner := gates.NewRunner(root)
	if cfg.Gates.Timeout > 0 {
		gateRunner.SetTimeout(cfg.Gates.Timeout)
	}

	opts := []runner.Option{runner.WithLogger(logger)}
	if db, err := memory.Open(memory.Path(root)); err == nil {
		defer db.Close()
		opts = append(opts, runner.WithMemory(db))
	} else {
		logger.Log("cross-run memory unavailable: %v", err)
	}
	if cfg.Classify.KeywordsFile != "" {
		weights, err := classify.LoadKeywordWeights(cfg.Classify.KeywordsFile)
		if err != nil {
			return fmt.Errorf("load keyword weights: %w", err)
		}
		opts = append(opts, runner.WithClassifier(classify.NewWithWeights(weights)))
	}

	r := runner.New(runID, st, executor, gateRunner, newCLIPrompter(), opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = r.Run(ctx)
	switch {
	case errors.Is(err, runner.ErrRunCancelled):
		fmt.Printf("%s run %s cancelled\n", color.YellowString("⚠"), runID)
		return nil
	case errors.Is(err, runner.ErrRunFinished):
		return fmt.Errorf("run %s already finished; start a new run without --resume", runID)
	case errors.Is(err, store.ErrLocked):
		return fmt.Errorf("run %s is locked by another process", runID)
	case err != nil:
		return err
	}
	fmt.Printf("%s run %s completed\n", color.GreenString("✓"), runID)
	return nil
}

// newRun creates a fresh run directory seeded with the backlog file.
func newRun(root string) (string, *store.Store, error) {
	prdPath := runPRDPath
	if !filepath.IsAbs(prdPath) {
		prdPath = filepath.Join(root, prdPath)
	}
	data, err := os.ReadFile(prdPath)
	if err != nil {
		return "", nil, fmt.Errorf("read backlog %s: %w", prdPath, err)
	}

	runID := "run-" + uuid.New().String()[:8]
	st, err := store.New(runDir(root, runID))
	if err != nil {
		return "", nil, err
	}
	if err := seedBacklog(st, data); err != nil {
		return "", nil, fmt.Errorf("backlog %s: %w", prdPath, err)
	}
	return runID, st, nil
}

// seedBacklog copies a backlog file into the run store. Hand-written
// backlogs are usually a bare Backlog object; those get wrapped in the
// document envelope rather than quarantined as corrupt.
func seedBacklog(st *store.Store, data []byte) error {
	var probe struct {
		Schema *int            `json:"schema"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Schema != nil && probe.Data != nil {
		if err := os.WriteFile(filepath.Join(st.Root(), store.DocBacklog), data, 0644); err != nil {
			return fmt.Errorf("seed backlog: %w", err)
		}
		// Fail fast on malformed backlogs before the runner takes the lock.
		if _, _, err := st.LoadBacklog(); err != nil {
			return fmt.Errorf("prd.json is not in the expected format: %w", err)
		}
		return nil
	}

	var b models.Backlog
	if err := json.Unmarshal(data, &b); err != nil || len(b.Items) == 0 {
		return errors.New("prd.json is not in the expected format (want a backlog with items, bare or enveloped)")
	}
	if _, err := st.SaveBacklog(&b, store.Meta{}); err != nil {
		return fmt.Errorf("seed backlog: %w", err)
	}
	return nil
}

// buildExecutor wires the configured implementation backend.
func buildExecutor(cfg *config.Config) (runner.Executor, error) {
	backend := runExecutor
	if backend == "" {
		backend = cfg.Executor.Backend
	}
	switch backend {
	case "", "api":
		client, err := agent.NewClient(agent.ClientConfig{
			Model:      anthropic.Model(cfg.Anthropic.Model),
			APIKey:     cfg.Anthropic.APIKey,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, err
		}
		return agent.NewExecutor(client), nil
	case "manual":
		return newManualExecutor(), nil
	default:
		return nil, fmt.Errorf("unknown executor backend %q (want api or manual)", backend)
	}
}
