package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lamim/paperforge/internal/api"
	"github.com/lamim/paperforge/internal/checkpoint"
	"github.com/lamim/paperforge/internal/config"
	"github.com/lamim/paperforge/internal/document"
	"github.com/lamim/paperforge/internal/generator"
	"github.com/lamim/paperforge/internal/metrics"
	"github.com/lamim/paperforge/internal/phase"
	"github.com/lamim/paperforge/internal/pipeline"
	"github.com/lamim/paperforge/internal/tui"
	"github.com/lamim/paperforge/internal/writer"
	"github.com/lamim/paperforge/pkg/models"
)

// app holds everything a session command works with
type app struct {
	cfg         *config.Config
	sessionMgr  *writer.SessionManager
	logger      *slog.Logger
	logFile     *os.File
	checkpoints *checkpoint.Manager
	metrics     *metrics.Collector
	ctrl        *phase.Controller
}

type openOptions struct {
	session    string // Existing session to reopen; empty starts a new one
	fromConfig bool   // Fall back to generation.resume_from_session
	validate   bool   // Reject a session whose paper settings differ from the config
}

// openApp loads the config, opens the session directory and restores any saved state
func openApp(opts openOptions) (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		for provider, key := range secrets.APIKeys {
			if key != "" {
				fmt.Fprintf(os.Stderr, "Loaded API key for: %s (length: %d)\n", provider, len(key))
			}
		}
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	resumeFrom := opts.session
	if resumeFrom == "" && opts.fromConfig {
		resumeFrom = cfg.Generation.ResumeFromSession
	}
	resumeMode := resumeFrom != ""

	sessionMgr, err := writer.NewSessionManager(cfg.Generation.OutputDir, writer.NewConsoleLogger(os.Stderr, logLevel), resumeFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(sessionMgr, os.Stderr, logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	a := &app{
		cfg:        cfg,
		sessionMgr: sessionMgr,
		logger:     logger,
		logFile:    logFile,
	}

	logger.Info("PaperForge starting",
		"version", Version,
		"config", configPath,
		"session_dir", sessionMgr.GetSessionDir(),
		"resume_mode", resumeMode)

	if !resumeMode {
		if err := sessionMgr.BackupConfig(configPath); err != nil {
			a.closeLog()
			return nil, fmt.Errorf("failed to backup config: %w", err)
		}
	}

	apiClient := api.NewClient(logger)
	a.metrics = metrics.NewCollector(logger)
	apiClient.SetObserver(a.metrics)

	gen, err := newGenerator(cfg, secrets, apiClient, logger)
	if err != nil {
		a.closeLog()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	a.ctrl = phase.NewController(gen, phase.Options{
		ContextWindowChars: cfg.Generation.ContextWindowChars,
		Logger:             logger,
		Observers:          []pipeline.Observer{a.metrics},
	})

	if resumeMode {
		saved, err := checkpoint.Load(sessionMgr.GetSessionDir(), logger)
		if err != nil {
			a.closeLog()
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if opts.validate {
			if err := checkpoint.ValidateSession(saved, cfg.Paper.PaperConfig()); err != nil {
				a.closeLog()
				return nil, fmt.Errorf("session validation failed: %w", err)
			}
		}
		if err := a.ctrl.Restore(*saved); err != nil {
			a.closeLog()
			return nil, fmt.Errorf("failed to restore session: %w", err)
		}
		logger.Info("Restored session",
			"phase", saved.Phase,
			"completed", checkpoint.GetCompletedCount(saved),
			"pending", len(checkpoint.PendingSections(saved)),
			"failed", len(checkpoint.FailedSections(saved)),
			"progress", fmt.Sprintf("%.1f%%", checkpoint.GetProgressPercentage(saved)))
	}

	if !cfg.Generation.EnableCheckpointing {
		logger.Warn("Checkpointing disabled, this session cannot be resumed")
	}
	a.checkpoints = checkpoint.NewManager(sessionMgr.GetSessionDir(), cfg.Generation.EnableCheckpointing, logger)
	a.ctrl.AddObserver(a.checkpoints.Autosave(a.ctrl.Snapshot))

	return a, nil
}

func newGenerator(cfg *config.Config, secrets *config.Secrets, client *api.Client, logger *slog.Logger) (generator.ContentGenerator, error) {
	if dryRun {
		logger.Info("Dry run: using offline echo generator")
		return generator.NewEchoGenerator(0), nil
	}
	return generator.New(cfg, secrets, client, logger)
}

func (a *app) close() {
	if err := a.checkpoints.Close(); err != nil {
		a.logger.Error("Failed to flush session", "error", err)
	}
	a.closeLog()
}

func (a *app) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Sync()
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// save writes the current session state before returning
func (a *app) save() error {
	if err := a.checkpoints.SaveSync(a.ctrl.Snapshot()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// persistOutline saves the session and mirrors the outline to outline.yaml
func (a *app) persistOutline() error {
	if err := a.save(); err != nil {
		return err
	}
	if err := writer.WriteOutline(a.sessionMgr.GetOutlinePath(), a.ctrl.Paper().Title, a.ctrl.Sections()); err != nil {
		return err
	}
	return nil
}

// createOutline runs the Input phase with the [paper] settings from the config
func (a *app) createOutline(ctx context.Context) error {
	if err := a.ctrl.SetConfig(a.cfg.Paper.PaperConfig()); err != nil {
		return fmt.Errorf("invalid paper settings: %w", err)
	}
	if err := a.save(); err != nil {
		return err
	}

	a.logger.Info("Generating outline", "title", a.ctrl.Paper().Title)
	if err := a.ctrl.CreateOutline(ctx); err != nil {
		return err
	}
	if err := a.persistOutline(); err != nil {
		return err
	}

	fmt.Println(tui.SectionTable(a.ctrl.Sections()))
	a.logger.Info("Outline ready", "sections", len(a.ctrl.Sections()), "path", a.sessionMgr.GetOutlinePath())
	return nil
}

// review opens the outline editor and reports whether the user chose to start writing
func (a *app) review() (bool, error) {
	result, err := tui.RunOutlineEditor(a.ctrl, a.ctrl.Paper().Title)
	if err != nil {
		return false, err
	}
	if err := a.persistOutline(); err != nil {
		return false, err
	}

	if result != tui.ResultStart {
		fmt.Printf("Outline saved. Continue with: paperforge write %s\n", a.sessionMgr.GetSessionName())
		return false, nil
	}
	return true, nil
}

// write drafts every pending section and finalizes when all of them completed
func (a *app) write(ctx context.Context) error {
	var p *pipeline.Pipeline
	switch a.ctrl.Phase() {
	case models.PhaseInput:
		return fmt.Errorf("session has no outline yet; run outline first or pass --outline")
	case models.PhaseOutline:
		var err error
		if p, err = a.ctrl.StartGeneration(); err != nil {
			return err
		}
		if err := a.save(); err != nil {
			return err
		}
	case models.PhaseGenerating:
		p = a.ctrl.Pipeline()
	case models.PhaseFinished:
		return fmt.Errorf("session is already finished; use export")
	}

	a.serveMetrics(ctx)

	bar := newProgressObserver(a.ctrl.Counts())
	a.ctrl.AddObserver(bar)

	runErr := p.Run(ctx)
	bar.Finish()
	a.metrics.SetSectionCounts(a.ctrl.Counts())

	if err := a.save(); err != nil {
		return err
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, pipeline.ErrCancelled) {
			name := a.sessionMgr.GetSessionName()
			a.logger.Warn("Generation interrupted - resume from the saved session",
				"session_dir", name,
				"resume_command", fmt.Sprintf("paperforge write %s", name))
			return fmt.Errorf("generation interrupted (resume with: paperforge write %s)", name)
		}
		return fmt.Errorf("generation failed: %w", runErr)
	}

	return a.finish()
}

// finish assembles and writes the document, or reports the sections that failed
func (a *app) finish() error {
	name := a.sessionMgr.GetSessionName()

	if !a.ctrl.ReadyToFinalize() {
		fmt.Println(tui.SectionTable(a.ctrl.Sections()))
		counts := a.ctrl.Counts()
		a.logger.Warn("Paper not finalized",
			"completed", counts[models.StatusCompleted],
			"failed", counts[models.StatusFailed],
			"total", counts.Total())
		return fmt.Errorf("%d section(s) failed (retry with: paperforge retry %s, or inspect with: paperforge export %s --partial)",
			counts[models.StatusFailed], name, name)
	}

	doc, err := a.ctrl.Finalize()
	if err != nil {
		return err
	}
	if err := a.save(); err != nil {
		return err
	}

	path := a.sessionMgr.GetDocumentPath(document.DefaultFilename)
	if err := writer.WriteDocument(path, doc); err != nil {
		return err
	}

	stats := a.ctrl.Snapshot().Stats
	a.logger.Info("Generation complete",
		"sections", stats.Completed,
		"duration", stats.TotalDuration,
		"average", stats.AverageDuration,
		"document", path)
	a.logger.Info("All done! 🎉")
	return nil
}

// serveMetrics exposes /metrics until ctx ends when an address is configured
func (a *app) serveMetrics(ctx context.Context) {
	addr := metricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.ListenAddr
	}
	if addr == "" {
		return
	}

	go func() {
		if err := a.metrics.Serve(ctx, addr); err != nil {
			a.logger.Warn("Metrics server stopped", "error", err)
		}
	}()
}
