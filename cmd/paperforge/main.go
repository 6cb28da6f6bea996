package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lamim/paperforge/internal/checkpoint"
	"github.com/lamim/paperforge/internal/document"
	"github.com/lamim/paperforge/internal/preview"
	"github.com/lamim/paperforge/internal/tui"
	"github.com/lamim/paperforge/internal/writer"
	"github.com/lamim/paperforge/pkg/models"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath  string
	envFile     string
	verbose     bool
	metricsAddr string
	dryRun      bool

	outlineFile   string
	sectionRef    string
	exportPath    string
	copyDocument  bool
	exportPartial bool
	reviewOutline bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "paperforge",
		Short: "PaperForge - LaTeX paper drafter",
		Long: `PaperForge turns a research sketch into a LaTeX paper draft.
The sketch is split into an outline, the outline is reviewed, and each
section is then drafted in order with the previous section as context.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to environment file (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while drafting (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Use the offline echo generator instead of the configured models")

	outlineCmd := &cobra.Command{
		Use:   "outline",
		Short: "Create a session and generate its outline",
		Long: `Start a new session from the [paper] settings in the config file,
ask the model for an outline and write it to outline.yaml in the session directory.`,
		Args: cobra.NoArgs,
		RunE: runOutline,
	}

	reviewCmd := &cobra.Command{
		Use:   "review <session>",
		Short: "Review and edit a session's outline",
		Long:  "Open the interactive outline editor. Choosing start continues straight into writing.",
		Args:  cobra.ExactArgs(1),
		RunE:  runReview,
	}

	writeCmd := &cobra.Command{
		Use:   "write <session>",
		Short: "Draft every pending section of a session",
		Long: `Freeze the outline and draft the sections one at a time. When every section
is completed the document is assembled and written to paper.tex.`,
		Args: cobra.ExactArgs(1),
		RunE: runWrite,
	}
	writeCmd.Flags().StringVar(&outlineFile, "outline", "", "Replace the outline with this YAML file before writing")

	retryCmd := &cobra.Command{
		Use:   "retry <session>",
		Short: "Retry failed sections and continue writing",
		Args:  cobra.ExactArgs(1),
		RunE:  runRetry,
	}
	retryCmd.Flags().StringVar(&sectionRef, "section", "", "Retry only this section (number, ID or ID prefix)")

	exportCmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write the assembled document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Destination file (default: paper.tex in the session directory)")
	exportCmd.Flags().BoolVar(&copyDocument, "copy", false, "Also copy the document to the clipboard")
	exportCmd.Flags().BoolVar(&exportPartial, "partial", false, "Assemble an unfinished session from its current sections")

	previewCmd := &cobra.Command{
		Use:   "preview <session> <section>",
		Short: "Render a drafted section as HTML",
		Long:  "Render a section (number, ID or ID prefix) to a standalone HTML page with KaTeX math.",
		Args:  cobra.ExactArgs(2),
		RunE:  runPreview,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run every phase end to end",
		Long: `Run the complete drafting flow:
1. Generate the outline from the sketch
2. Optional: review the outline interactively (--review)
3. Draft every section in order
4. Assemble and write paper.tex

If resume_from_session is set in the config, that session continues from its saved phase.`,
		Args: cobra.NoArgs,
		RunE: runAll,
	}
	runCmd.Flags().BoolVar(&reviewOutline, "review", false, "Open the outline editor before writing")

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved sessions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all sessions in the output directory",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <session>",
		Short: "Inspect a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectSession,
	}

	sessionCmd.AddCommand(listCmd)
	sessionCmd.AddCommand(inspectCmd)

	rootCmd.AddCommand(outlineCmd, reviewCmd, writeCmd, retryCmd, exportCmd, previewCmd, runCmd, sessionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runOutline(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if err := a.createOutline(ctx); err != nil {
		return err
	}

	name := a.sessionMgr.GetSessionName()
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  paperforge review %s\n", name)
	fmt.Printf("  paperforge write %s [--outline %s]\n", name, a.sessionMgr.GetOutlinePath())
	return nil
}

func runReview(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{session: args[0], validate: true})
	if err != nil {
		return err
	}
	defer a.close()

	if phase := a.ctrl.Phase(); phase != models.PhaseOutline {
		return fmt.Errorf("review needs a session in the outline phase (current: %s)", phase)
	}

	start, err := a.review()
	if err != nil || !start {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return a.write(ctx)
}

func runWrite(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{session: args[0], validate: true})
	if err != nil {
		return err
	}
	defer a.close()

	if outlineFile != "" {
		items, err := writer.ReadOutline(outlineFile)
		if err != nil {
			return err
		}
		if err := a.ctrl.UseOutline(items); err != nil {
			return fmt.Errorf("failed to use outline %s: %w", outlineFile, err)
		}
		if err := a.persistOutline(); err != nil {
			return err
		}
		a.logger.Info("Imported outline", "path", outlineFile, "sections", len(items))
	}

	ctx, stop := signalContext()
	defer stop()
	return a.write(ctx)
}

func runRetry(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{session: args[0], validate: true})
	if err != nil {
		return err
	}
	defer a.close()

	if sectionRef != "" {
		sec, _, err := resolveSection(a.ctrl.Sections(), sectionRef)
		if err != nil {
			return err
		}
		if err := a.ctrl.RetrySection(sec.ID); err != nil {
			return fmt.Errorf("failed to retry %q: %w", sec.Title, err)
		}
		a.logger.Info("Retrying section", "section", sec.Title)
	} else {
		n, err := a.ctrl.RetryFailed()
		if err != nil {
			return err
		}
		a.logger.Info("Retrying failed sections", "count", n)
	}
	if err := a.save(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return a.write(ctx)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{session: args[0]})
	if err != nil {
		return err
	}
	defer a.close()

	var doc string
	filename := document.DefaultFilename
	switch {
	case a.ctrl.Phase() == models.PhaseFinished:
		doc, err = a.ctrl.Document()
		if err != nil {
			return err
		}
	case exportPartial:
		doc = a.ctrl.PartialDocument()
		filename = partialFilename
	default:
		return fmt.Errorf("session is in the %s phase; finish it with write or pass --partial", a.ctrl.Phase())
	}

	path := exportPath
	if path == "" {
		path = a.sessionMgr.GetDocumentPath(filename)
	}
	if err := writer.WriteDocument(path, doc); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)

	if copyDocument {
		err := writer.CopyToClipboard(doc)
		switch {
		case errors.Is(err, writer.ErrClipboardUnavailable):
			a.logger.Warn("Clipboard not available, document was only written to disk")
		case err != nil:
			return err
		default:
			fmt.Println("Copied to clipboard")
		}
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{session: args[0]})
	if err != nil {
		return err
	}
	defer a.close()

	sec, index, err := resolveSection(a.ctrl.Sections(), args[1])
	if err != nil {
		return err
	}
	if sec.Content == "" {
		return fmt.Errorf("section %q has no content yet (status: %s)", sec.Title, sec.Status)
	}

	path, err := preview.NewRenderer().WriteSection(a.sessionMgr.GetPreviewDir(), index, sec)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	a, err := openApp(openOptions{fromConfig: true, validate: true})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if a.ctrl.Phase() == models.PhaseInput {
		if err := a.createOutline(ctx); err != nil {
			return err
		}
	}

	if reviewOutline && a.ctrl.Phase() == models.PhaseOutline {
		start, err := a.review()
		if err != nil || !start {
			return err
		}
	}

	return a.write(ctx)
}

func listSessions(cmd *cobra.Command, args []string) error {
	outputDir := sessionOutputDir()

	names, err := writer.ListSessions(outputDir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No sessions found. Start one with: paperforge outline")
		return nil
	}

	fmt.Println("Available sessions:")
	fmt.Println()
	fmt.Printf("%-35s %-12s %-10s %s\n", "SESSION", "PHASE", "SECTIONS", "PROGRESS")
	fmt.Println(tui.SubtleStyle.Render(ruler(70)))

	for _, name := range names {
		phase := "N/A"
		count := "-"
		progress := 0.0
		if s, err := loadQuiet(outputDir, name); err == nil {
			phase = string(s.Phase)
			count = fmt.Sprintf("%d", len(s.Sections))
			progress = checkpoint.GetProgressPercentage(s)
		}
		fmt.Printf("%-35s %-12s %-10s %.1f%%\n", name, phase, count, progress)
	}
	return nil
}

func inspectSession(cmd *cobra.Command, args []string) error {
	name := args[0]
	outputDir := sessionOutputDir()

	// SECURITY: Validate session path to prevent path traversal (CWE-22)
	if err := writer.ValidateSessionPath(outputDir, name); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}

	s, err := loadQuiet(outputDir, name)
	if err != nil {
		return err
	}
	printSession(name, s)
	return nil
}
