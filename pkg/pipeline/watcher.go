package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
)

// DefaultDebounce is how long the watcher waits after the last write to a
// note before re-indexing it. Editors emit bursts of writes per save.
const DefaultDebounce = 500 * time.Millisecond

// WatcherConfig holds configuration for the vault watcher.
type WatcherConfig struct {
	// Service performs the index and delete operations. Required.
	Service *Service

	// Root is the vault directory to watch. Required.
	Root string

	// Storage reads changed notes, sandboxed at Root. Required.
	Storage storage.Driver

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// Logger receives watch lifecycle logs.
	Logger *slog.Logger
}

// Watcher re-indexes markdown notes as they change on disk and removes
// deleted ones from the index.
type Watcher struct {
	svc      *Service
	files    storage.Driver
	root     string
	debounce time.Duration
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over the vault root.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Service == nil {
		return nil, errors.New("pipeline service is required")
	}
	if cfg.Root == "" {
		return nil, errors.New("vault root is required")
	}
	if cfg.Storage == nil {
		return nil, errors.New("storage driver is required")
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}

	if err := fsw.Add(cfg.Root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", cfg.Root, err)
	}

	return &Watcher{
		svc:      cfg.Service,
		files:    cfg.Storage,
		root:     cfg.Root,
		debounce: debounce,
		logger:   lg,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run processes file events until the context is canceled or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching vault", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".md") {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		w.logger.Error("resolving note path", "path", event.Name, "error", err)
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelPending(rel)
		result := w.svc.DeleteNote(ctx, rel)
		if !result.Success {
			w.logger.Error("removing deleted note from index", "note_id", rel, "error", result.Error)
		}

	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.scheduleIndex(ctx, rel)
	}
}

// scheduleIndex (re)arms the per-note debounce timer.
func (w *Watcher) scheduleIndex(ctx context.Context, noteID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[noteID]; ok {
		timer.Stop()
	}

	w.pending[noteID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, noteID)
		w.mu.Unlock()

		w.index(ctx, noteID)
	})
}

func (w *Watcher) index(ctx context.Context, noteID string) {
	content, err := w.files.Read(ctx, noteID)
	if err != nil {
		w.logger.Error("reading changed note", "note_id", noteID, "error", err)
		return
	}

	result := w.svc.IndexNote(ctx, NoteInput{ID: noteID, Content: string(content)}, "")
	if !result.Success {
		w.logger.Error("indexing changed note", "note_id", noteID, "error", result.Error)
		return
	}

	w.logger.Info("note indexed", "note_id", noteID, "operation_id", result.OperationID)
}

func (w *Watcher) cancelPending(noteID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[noteID]; ok {
		timer.Stop()
		delete(w.pending, noteID)
	}
}

// Close stops watching. Pending debounce timers are canceled.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for id, timer := range w.pending {
		timer.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
