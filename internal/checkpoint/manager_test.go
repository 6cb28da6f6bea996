package checkpoint

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lamim/paperforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSession() models.Session {
	return models.Session{
		SessionID: "b7d1c1f2-3f0a-4a53-9d43-6f1e3c2d9a10",
		CreatedAt: time.Now(),
		Phase:     models.PhaseOutline,
		Config: models.PaperConfig{
			Title:        "On Expanders",
			Tone:         models.ToneFormalAcademic,
			Template:     models.TemplateStandardArticle,
			TargetLength: models.LengthShortLetter,
			RawSketch:    "spectral gap implies mixing",
		},
		Sections: []models.Section{
			{ID: "a", Title: "Intro", Description: "Motivation", Status: models.StatusPending},
			{ID: "b", Title: "Method", Description: "Argument", Status: models.StatusPending},
		},
	}
}

func TestNewManager(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, true, testLogger())

	if mgr.sessionDir != tempDir {
		t.Errorf("Expected sessionDir %s, got %s", tempDir, mgr.sessionDir)
	}

	if !mgr.enabled {
		t.Error("Expected enabled to be true")
	}

	if mgr.Latest() != nil {
		t.Error("Expected no session before the first save")
	}

	if err := mgr.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestSaveSyncAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	logger := testLogger()
	mgr := NewManager(tempDir, true, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	s := testSession()
	if err := mgr.SaveSync(s); err != nil {
		t.Fatalf("SaveSync failed: %v", err)
	}

	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Phase != models.PhaseOutline {
		t.Errorf("Expected phase %s, got %s", models.PhaseOutline, loaded.Phase)
	}

	if len(loaded.Sections) != 2 || loaded.Sections[1].Title != "Method" {
		t.Errorf("Unexpected sections: %+v", loaded.Sections)
	}

	if loaded.ConfigHash != ConfigHash(s.Config) {
		t.Errorf("Expected config hash %s, got %s", ConfigHash(s.Config), loaded.ConfigHash)
	}

	if loaded.LastSavedAt.IsZero() {
		t.Error("Expected LastSavedAt to be set")
	}

	if _, err := os.Stat(filepath.Join(tempDir, SessionFilename+".tmp")); !os.IsNotExist(err) {
		t.Error("Temp file should be renamed away")
	}
}

func TestSaveDoesNotAlias(t *testing.T) {
	mgr := NewManager(t.TempDir(), true, testLogger())
	defer func() { _ = mgr.Close() }()

	s := testSession()
	if err := mgr.SaveSync(s); err != nil {
		t.Fatalf("SaveSync failed: %v", err)
	}
	s.Sections[0].Title = "Changed"

	if got := mgr.Latest().Sections[0].Title; got != "Intro" {
		t.Errorf("Latest() shares memory with caller, got title %q", got)
	}
}

func TestAsyncWriteBuffer(t *testing.T) {
	tempDir := t.TempDir()
	logger := testLogger()
	mgr := NewManager(tempDir, true, logger)

	s := testSession()
	s.Phase = models.PhaseGenerating
	for i := range s.Sections {
		s.Sections[i].Status = models.StatusCompleted
		s.Sections[i].Content = "body"
		s.Stats.Completed = i + 1
		if err := mgr.Save(s); err != nil {
			t.Fatalf("Save(%d) failed: %v", i, err)
		}
	}

	// Close flushes pending writes
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if GetCompletedCount(loaded) != 2 {
		t.Errorf("Expected 2 completed sections, got %d", GetCompletedCount(loaded))
	}

	if loaded.Stats.Completed != 2 {
		t.Errorf("Expected Stats.Completed 2, got %d", loaded.Stats.Completed)
	}
}

func TestDisabledManagerWritesNothing(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, false, testLogger())
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	if err := mgr.Save(testSession()); err != nil {
		t.Fatalf("Save() should not error when disabled: %v", err)
	}
	if err := mgr.SaveSync(testSession()); err != nil {
		t.Fatalf("SaveSync() should not error when disabled: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, SessionFilename)); !os.IsNotExist(err) {
		t.Error("Session file should not exist when checkpointing is disabled")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir(), testLogger()); err == nil {
		t.Error("Expected error loading from an empty directory")
	}
}

func TestConfigHash(t *testing.T) {
	cfg1 := testSession().Config
	cfg2 := cfg1
	cfg2.RawSketch = "a different sketch"

	if ConfigHash(cfg1) == ConfigHash(cfg2) {
		t.Error("Different configs should produce different hashes")
	}

	if ConfigHash(cfg1) != ConfigHash(testSession().Config) {
		t.Error("Same config should produce same hash")
	}
}

func TestAutosave(t *testing.T) {
	tempDir := t.TempDir()
	logger := testLogger()
	mgr := NewManager(tempDir, true, logger)

	s := testSession()
	obs := mgr.Autosave(func() models.Session { return s })
	s.Sections[0].Status = models.StatusCompleted
	obs.SectionFinished(s.Sections[0], time.Second, nil)

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Sections[0].Status != models.StatusCompleted {
		t.Errorf("Expected autosaved status completed, got %s", loaded.Sections[0].Status)
	}
}
