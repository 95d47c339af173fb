package manuscript

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/loom/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/services"
)

// key scopes an entity ID to the sample project.
func key(id string) string {
	return domain.EntityKey("snow-blade", id)
}

func relatedIDs(t *testing.T, store *memory.RecordStore) map[string]int {
	t.Helper()
	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.RelatedID]++
	}
	return counts
}

func newTestWatcher(t *testing.T) (*Watcher, *memory.RecordStore) {
	t.Helper()
	p, err := LoadProject(writeProject(t, sampleManifest))
	require.NoError(t, err)

	store := memory.NewRecordStore()
	w, err := NewWatcher(p, services.NewIndexService(store, nil))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, store
}

func TestIndexProject(t *testing.T) {
	p, err := LoadProject(writeProject(t, sampleManifest))
	require.NoError(t, err)
	store := memory.NewRecordStore()

	reports := IndexProject(context.Background(), p, services.NewIndexService(store, nil))

	require.Len(t, reports, 6)
	for _, r := range reports {
		assert.True(t, r.OK(), "%s: %v", r.RelatedID, r.Err)
	}
	ids := relatedIDs(t, store)
	assert.Equal(t, 2, ids[key("prologue")], "body chunk plus summary")
	assert.Equal(t, 1, ids[key("林风")])
	assert.Equal(t, 1, ids[key("qingyun")])
}

func TestPrune(t *testing.T) {
	dir := writeProject(t, sampleManifest)
	before, err := LoadProject(dir)
	require.NoError(t, err)

	store := memory.NewRecordStore()
	indexer := services.NewIndexService(store, nil)
	IndexProject(context.Background(), before, indexer)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile),
		[]byte("id: snow-blade\nchapters:\n  - id: prologue\n    file: chapters/001.md\n"), 0o644))
	after, err := LoadProject(dir)
	require.NoError(t, err)

	removed, err := Prune(context.Background(), before, after, indexer)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{key("002"), key("林风"), key("qingyun"), key("古龙式短句"), key("inline")}, removed)
	ids := relatedIDs(t, store)
	assert.Contains(t, ids, key("prologue"))
	assert.NotContains(t, ids, key("林风"))
}

func TestWatcher_Classify(t *testing.T) {
	w, _ := newTestWatcher(t)
	chapter := filepath.Join(w.project.Dir, "chapters", "001.md")

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want ChangeType
	}{
		{"chapter write", chapter, fsnotify.Write, ChangeChapter},
		{"chapter create", chapter, fsnotify.Create, ChangeChapter},
		{"chapter remove", chapter, fsnotify.Remove, ChangeChapterRemoved},
		{"chapter rename", chapter, fsnotify.Rename, ChangeChapterRemoved},
		{"chapter chmod", chapter, fsnotify.Chmod, ChangeNone},
		{"manifest write", w.project.ManifestPath(), fsnotify.Write, ChangeManifest},
		{"manifest remove", w.project.ManifestPath(), fsnotify.Remove, ChangeNone},
		{"unrelated file", filepath.Join(w.project.Dir, "chapters", "notes.md"), fsnotify.Write, ChangeNone},
		{"editor swap file", filepath.Join(w.project.Dir, "chapters", ".001.md.swp"), fsnotify.Write, ChangeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.classify(fsnotify.Event{Name: tt.path, Op: tt.op})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatcher_HandleEvent(t *testing.T) {
	w, store := newTestWatcher(t)
	ctx := context.Background()
	chapter := filepath.Join(w.project.Dir, "chapters", "002.md")

	require.NoError(t, os.WriteFile(chapter, []byte("钟声响了九下。"), 0o644))
	change := w.handleEvent(ctx, fsnotify.Event{Name: chapter, Op: fsnotify.Write})

	require.NoError(t, change.Err)
	assert.Equal(t, ChangeChapter, change.Type)
	assert.Equal(t, "002", change.RelatedID)
	require.Len(t, change.Reports, 1)
	assert.Equal(t, 1, change.Reports[0].Records)
	assert.Equal(t, 1, relatedIDs(t, store)[key("002")])

	require.NoError(t, os.Remove(chapter))
	change = w.handleEvent(ctx, fsnotify.Event{Name: chapter, Op: fsnotify.Remove})

	require.NoError(t, change.Err)
	assert.Equal(t, ChangeChapterRemoved, change.Type)
	assert.NotContains(t, relatedIDs(t, store), key("002"))
}

func TestWatcher_ReloadKeepsProjectOnBrokenManifest(t *testing.T) {
	w, _ := newTestWatcher(t)
	before := w.project

	require.NoError(t, os.WriteFile(w.project.ManifestPath(), []byte("chapters: ["), 0o644))
	change := w.handleEvent(context.Background(), fsnotify.Event{Name: w.project.ManifestPath(), Op: fsnotify.Write})

	assert.Equal(t, ChangeManifest, change.Type)
	assert.ErrorIs(t, change.Err, domain.ErrInvalidInput)
	assert.Same(t, before, w.project)
}

func TestWatcher_Run(t *testing.T) {
	w, store := newTestWatcher(t)

	var mu sync.Mutex
	var changes []Change
	w.onChange = func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	chapter := filepath.Join(w.project.Dir, "chapters", "001.md")
	require.NoError(t, os.WriteFile(chapter, []byte("新的开头。"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "prologue", changes[0].RelatedID)
	mu.Unlock()
	assert.Positive(t, relatedIDs(t, store)[key("prologue")])

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

// countingIndexer counts chapter indexing calls and can hold them until
// release is closed.
type countingIndexer struct {
	*services.IndexService
	chapters atomic.Int32
	release  chan struct{}
}

func (c *countingIndexer) IndexChapter(ctx context.Context, chapter domain.Chapter) domain.IndexReport {
	c.chapters.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
		}
	}
	return c.IndexService.IndexChapter(ctx, chapter)
}

// changeLog collects the changes reported by a running watcher.
type changeLog struct {
	mu      sync.Mutex
	changes []Change
}

func (l *changeLog) add(c Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) has(typ ChangeType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.changes {
		if c.Type == typ {
			return true
		}
	}
	return false
}

func runWatcher(t *testing.T, indexer *countingIndexer, debounce time.Duration) (*Watcher, *changeLog) {
	t.Helper()
	p, err := LoadProject(writeProject(t, sampleManifest))
	require.NoError(t, err)

	log := &changeLog{}
	w, err := NewWatcher(p, indexer, WithDebounce(debounce), WithOnChange(log.add))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx) //nolint:errcheck
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
		indexer.Wait()
	})
	return w, log
}

func TestWatcher_DebouncesSaveBursts(t *testing.T) {
	indexer := &countingIndexer{IndexService: services.NewIndexService(memory.NewRecordStore(), nil)}
	w, log := runWatcher(t, indexer, 150*time.Millisecond)

	chapter := filepath.Join(w.project.Dir, "chapters", "001.md")
	for _, text := range []string{"一稿。", "二稿。", "三稿。"} {
		require.NoError(t, os.WriteFile(chapter, []byte(text), 0o644))
	}

	assert.Eventually(t, func() bool { return log.has(ChangeChapter) }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), indexer.chapters.Load())
}

func TestWatcher_SlowIndexingDoesNotBlockEvents(t *testing.T) {
	indexer := &countingIndexer{
		IndexService: services.NewIndexService(memory.NewRecordStore(), nil),
		release:      make(chan struct{}),
	}
	w, log := runWatcher(t, indexer, 0)

	require.NoError(t, os.WriteFile(filepath.Join(w.project.Dir, "chapters", "001.md"), []byte("新的开头。"), 0o644))
	assert.Eventually(t, func() bool { return indexer.chapters.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(w.project.Dir, "chapters", "002.md")))
	assert.Eventually(t, func() bool { return log.has(ChangeChapterRemoved) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, log.has(ChangeChapter), "chapter indexing is still held")

	close(indexer.release)
	assert.Eventually(t, func() bool { return log.has(ChangeChapter) }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_RemovalOnlyTouchesItsProject(t *testing.T) {
	w, store := newTestWatcher(t)
	ctx := context.Background()
	indexer := services.NewIndexService(store, nil)

	other := domain.Chapter{ID: "002", ProjectID: "other-book", Order: 2, Content: "另一本书的第二章。"}
	require.NoError(t, indexer.IndexChapter(ctx, other).Err)
	chapter := filepath.Join(w.project.Dir, "chapters", "002.md")
	require.NoError(t, w.handleEvent(ctx, fsnotify.Event{Name: chapter, Op: fsnotify.Write}).Err)

	require.NoError(t, os.Remove(chapter))
	require.NoError(t, w.handleEvent(ctx, fsnotify.Event{Name: chapter, Op: fsnotify.Remove}).Err)

	ids := relatedIDs(t, store)
	assert.NotContains(t, ids, key("002"))
	assert.Equal(t, 1, ids[domain.EntityKey("other-book", "002")])
}
