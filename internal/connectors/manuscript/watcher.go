package manuscript

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
	"github.com/custodia-labs/loom/internal/logger"
)

// ChangeType classifies a file system event relevant to a project.
type ChangeType int

// Change types.
const (
	// ChangeNone means the event does not concern the project.
	ChangeNone ChangeType = iota

	// ChangeChapter means a chapter file was created or written.
	ChangeChapter

	// ChangeChapterRemoved means a chapter file was removed or renamed away.
	ChangeChapterRemoved

	// ChangeManifest means loom.yaml changed.
	ChangeManifest
)

// DefaultDebounce is how long a path must stay quiet before its events
// are handled. Editors often write a file several times per save.
const DefaultDebounce = 300 * time.Millisecond

// Change is the outcome of handling one watched event. RelatedID is the
// chapter's project-local ID.
type Change struct {
	Type      ChangeType
	Path      string
	RelatedID string
	Reports   []domain.IndexReport
	Err       error
}

// Watcher keeps the index of one project in sync with its files.
type Watcher struct {
	project  *Project
	indexer  driving.IndexService
	watcher  *fsnotify.Watcher
	onChange func(Change)
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithOnChange registers a callback invoked after every handled change.
func WithOnChange(fn func(Change)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithDebounce sets the quiet period per path. Zero handles every event
// immediately.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over the project's directories.
func NewWatcher(project *Project, indexer driving.IndexService, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		project:  project,
		indexer:  indexer,
		watcher:  fw,
		onChange: func(Change) {},
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirs(); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirs() error {
	for _, dir := range w.project.Dirs() {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return nil
}

// Run handles events until ctx is cancelled or the watcher is closed.
// Bursts of events on one path collapse into the last one. Chapter
// re-indexing runs in the background, so a slow embedding provider never
// holds up the event loop; its Change is reported once indexing finishes.
func (w *Watcher) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)

	due := make(chan fsnotify.Event)
	done := make(chan Change)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.classify(event) == ChangeNone {
				continue
			}
			path := filepath.Clean(event.Name)
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				select {
				case due <- event:
				case <-stop:
				}
			})

		case event := <-due:
			path := filepath.Clean(event.Name)
			delete(timers, path)
			if w.classify(event) != ChangeChapter {
				w.notify(w.handleEvent(ctx, event))
				continue
			}
			change, reports := w.startChapter(ctx, path)
			if reports == nil {
				w.notify(change)
				continue
			}
			go func() {
				change := finishChapter(change, <-reports)
				select {
				case done <- change:
				case <-stop:
				}
			}()

		case change := <-done:
			w.notify(change)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) notify(change Change) {
	if change.Type != ChangeNone {
		w.onChange(change)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// classify maps an fsnotify event to a change type without touching the index.
func (w *Watcher) classify(event fsnotify.Event) ChangeType {
	path := filepath.Clean(event.Name)
	if isHidden(filepath.Base(path)) {
		return ChangeNone
	}

	if path == w.project.ManifestPath() {
		if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
			return ChangeManifest
		}
		return ChangeNone
	}

	if _, ok := w.project.ChapterIDAt(path); !ok {
		return ChangeNone
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return ChangeChapter
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return ChangeChapterRemoved
	default:
		return ChangeNone
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) Change {
	change := Change{Type: w.classify(event), Path: filepath.Clean(event.Name)}

	switch change.Type {
	case ChangeChapter:
		started, reports := w.startChapter(ctx, change.Path)
		if reports == nil {
			return started
		}
		return finishChapter(started, <-reports)

	case ChangeChapterRemoved:
		change.RelatedID, _ = w.project.ChapterIDAt(change.Path)
		change.Err = w.indexer.DeleteEntity(ctx, domain.EntityKey(w.project.ID, change.RelatedID))
		logger.Info("removed chapter %s", change.RelatedID)

	case ChangeManifest:
		change.Reports, change.Err = w.reload(ctx)

	case ChangeNone:
	}

	if change.Err != nil {
		logger.Warn("%s: %v", change.Path, change.Err)
	}
	return change
}

// startChapter reads the chapter at path and queues its re-indexing. The
// report channel is nil when the file could not be read; change.Err says why.
func (w *Watcher) startChapter(ctx context.Context, path string) (Change, <-chan domain.IndexReport) {
	change := Change{Type: ChangeChapter, Path: path}
	chapter, _, err := w.project.ChapterAt(path)
	change.RelatedID = chapter.ID
	if err != nil {
		change.Err = err
		logger.Warn("%s: %v", path, err)
		return change, nil
	}
	return change, w.indexer.IndexAsync(ctx, func(ctx context.Context) domain.IndexReport {
		return w.indexer.IndexChapter(ctx, chapter)
	})
}

func finishChapter(change Change, report domain.IndexReport) Change {
	change.Reports = []domain.IndexReport{report}
	change.Err = report.Err
	if report.Err != nil {
		logger.Warn("%s: %v", change.Path, report.Err)
	} else {
		logger.Info("re-indexed chapter %s (%d records)", change.RelatedID, report.Records)
	}
	return change
}

// reload re-reads the manifest, prunes dropped entities and re-indexes
// the rest. On a broken manifest the previous project stays active.
func (w *Watcher) reload(ctx context.Context) ([]domain.IndexReport, error) {
	next, err := LoadProject(w.project.Dir)
	if err != nil {
		return nil, fmt.Errorf("reload manifest: %w", err)
	}
	if _, err := Prune(ctx, w.project, next, w.indexer); err != nil {
		return nil, err
	}
	w.project = next
	if err := w.addDirs(); err != nil {
		return nil, err
	}
	return IndexProject(ctx, next, w.indexer), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
