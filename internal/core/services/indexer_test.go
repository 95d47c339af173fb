package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/loom/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/postprocessors/chunker"
)

const chapterText = "林风拔出神剑。苏瑶在山门等候。大雪覆盖了青云宗。"

func newTestIndexer(store *memory.RecordStore, embedder *fakeEmbedder, opts ...IndexOption) *IndexService {
	base := []IndexOption{
		WithChunker(chunker.New(chunker.WithMaxSize(10), chunker.WithOverlap(0))),
		WithEmbedRateLimit(0, 0),
	}
	if embedder == nil {
		return NewIndexService(store, nil, append(base, opts...)...)
	}
	return NewIndexService(store, embedder, append(base, opts...)...)
}

func TestIndexService_IndexChapter(t *testing.T) {
	store := memory.NewRecordStore()
	embedder := &fakeEmbedder{dims: 2}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := newTestIndexer(store, embedder, WithEmbedBatchSize(2), WithClock(func() time.Time { return fixed }))

	report := svc.IndexChapter(context.Background(), domain.Chapter{
		ID:        "ch1",
		ProjectID: "p1",
		Order:     3,
		Title:     "初入宗门",
		Content:   chapterText,
		Summary:   "林风入宗。",
	})

	require.NoError(t, report.Err)
	assert.True(t, report.OK())
	assert.Equal(t, "p1/ch1", report.RelatedID)
	assert.Equal(t, domain.RecordKindChapter, report.Kind)
	assert.Equal(t, 4, report.Records)
	assert.Equal(t, 4, report.Embedded)
	assert.Empty(t, report.Warnings)
	assert.Len(t, embedder.batches, 2)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)

	bodies, summaries := 0, 0
	for _, rec := range all {
		assert.Equal(t, "p1/ch1", rec.RelatedID)
		assert.Equal(t, "ch1", rec.EntityID())
		assert.Equal(t, 3, rec.OrderValue())
		assert.Equal(t, fixed, rec.Timestamp)
		assert.Equal(t, "p1", rec.MetaString(domain.MetaProjectID))
		assert.Equal(t, "初入宗门", rec.MetaString(domain.MetaTitle))
		assert.True(t, rec.HasVector())
		switch rec.MetaString(domain.MetaPart) {
		case domain.PartBody:
			bodies++
		case domain.PartSummary:
			summaries++
			assert.Equal(t, "林风入宗。", rec.Text)
		}
	}
	assert.Equal(t, 3, bodies)
	assert.Equal(t, 1, summaries)
}

func TestIndexService_ReindexReplaces(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, nil)
	ctx := context.Background()

	first := svc.IndexChapter(ctx, domain.Chapter{ID: "ch1", Order: 1, Content: chapterText})
	require.NoError(t, first.Err)
	before, _ := store.GetAll(ctx)

	again := svc.IndexChapter(ctx, domain.Chapter{ID: "ch1", Order: 1, Content: chapterText})
	require.NoError(t, again.Err)
	after, _ := store.GetAll(ctx)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}

	shorter := svc.IndexChapter(ctx, domain.Chapter{ID: "ch1", Order: 1, Content: "林风拔出神剑。"})
	require.NoError(t, shorter.Err)
	assert.Equal(t, 1, store.Len())
}

func TestIndexService_EmbeddingFailureStillStores(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, &fakeEmbedder{err: errors.New("connection refused")})

	report := svc.IndexChapter(context.Background(), domain.Chapter{ID: "ch1", Order: 1, Content: chapterText})

	require.NoError(t, report.Err)
	assert.Equal(t, 3, report.Records)
	assert.Zero(t, report.Embedded)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "connection refused")

	all, _ := store.GetAll(context.Background())
	for _, rec := range all {
		assert.False(t, rec.HasVector())
	}
}

func TestIndexService_DimensionMismatchDropsVectors(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, &fakeEmbedder{dims: 3})

	report := svc.IndexCharacter(context.Background(), domain.Character{ID: "c1", Name: "林风"})

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Records)
	assert.Zero(t, report.Embedded)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], domain.ErrDimensionMismatch.Error())
}

func TestIndexService_StoreFailureAborts(t *testing.T) {
	svc := NewIndexService(brokenStore{}, nil, WithEmbedRateLimit(0, 0))

	report := svc.IndexChapter(context.Background(), domain.Chapter{ID: "ch1", Content: chapterText})

	require.Error(t, report.Err)
	assert.ErrorIs(t, report.Err, errBroken)
	assert.False(t, report.OK())
	assert.Zero(t, report.Records)
}

func TestIndexService_CharacterAndWiki(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, nil)
	ctx := context.Background()

	character := domain.Character{
		ID: "c1", ProjectID: "p1", Name: "林风", Role: "主角",
		Description: "青云宗外门弟子", Traits: []string{"沉稳", "重情义"},
	}
	entry := domain.WikiEntry{
		ID: "w1", ProjectID: "p1", Name: "青云宗", Aliases: []string{"青云门"},
		Category: "门派", Description: "东域第一大宗",
	}

	require.NoError(t, svc.IndexCharacter(ctx, character).Err)
	require.NoError(t, svc.IndexWikiEntry(ctx, entry).Err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byKind := map[domain.RecordKind]*domain.IndexedRecord{}
	for i := range all {
		byKind[all[i].Kind] = &all[i]
	}
	assert.Equal(t, character.Summary(), byKind[domain.RecordKindCharacter].Text)
	assert.Equal(t, "林风", byKind[domain.RecordKindCharacter].MetaString(domain.MetaName))
	assert.Nil(t, byKind[domain.RecordKindCharacter].Order)
	assert.Equal(t, entry.Summary(), byKind[domain.RecordKindWiki].Text)
	assert.Equal(t, "青云宗", byKind[domain.RecordKindWiki].MetaString(domain.MetaName))
}

func TestIndexService_StyleSample(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, nil)

	report := svc.IndexStyleSample(context.Background(), domain.StyleSample{
		ID: "s1", ProjectID: "p1", Title: "雪夜", Content: chapterText,
	})

	require.NoError(t, report.Err)
	assert.Equal(t, 3, report.Records)
	all, _ := store.GetAll(context.Background())
	for _, rec := range all {
		assert.Equal(t, domain.RecordKindStyleSample, rec.Kind)
		assert.Equal(t, "雪夜", rec.MetaString(domain.MetaTitle))
	}
}

func TestIndexService_InvalidInput(t *testing.T) {
	svc := newTestIndexer(memory.NewRecordStore(), nil)
	ctx := context.Background()

	reports := []domain.IndexReport{
		svc.IndexChapter(ctx, domain.Chapter{Content: "x"}),
		svc.IndexCharacter(ctx, domain.Character{ID: "c1"}),
		svc.IndexWikiEntry(ctx, domain.WikiEntry{Name: "青云宗"}),
		svc.IndexStyleSample(ctx, domain.StyleSample{Content: "x"}),
	}
	for _, r := range reports {
		assert.ErrorIs(t, r.Err, domain.ErrInvalidInput)
	}
	assert.ErrorIs(t, svc.DeleteEntity(ctx, ""), domain.ErrInvalidInput)
}

func TestIndexService_IndexAsync(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, nil)
	chapter := domain.Chapter{ID: "ch1", Order: 1, Content: chapterText}

	ch := svc.IndexAsync(context.Background(), func(ctx context.Context) domain.IndexReport {
		return svc.IndexChapter(ctx, chapter)
	})

	select {
	case report := <-ch:
		require.NoError(t, report.Err)
		assert.Equal(t, 3, report.Records)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for index report")
	}

	_, open := <-ch
	assert.False(t, open)
	svc.Wait()
	assert.Equal(t, 3, store.Len())
}

func TestIndexService_IndexAsyncFailureIsDelivered(t *testing.T) {
	svc := NewIndexService(brokenStore{}, nil, WithEmbedRateLimit(0, 0))

	report := <-svc.IndexAsync(context.Background(), func(ctx context.Context) domain.IndexReport {
		return svc.IndexCharacter(ctx, domain.Character{ID: "c1", Name: "林风"})
	})

	assert.ErrorIs(t, report.Err, errBroken)
}

func TestIndexService_DeleteAndClear(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.IndexChapter(ctx, domain.Chapter{ID: "ch1", Order: 1, Content: chapterText}).Err)
	require.NoError(t, svc.IndexCharacter(ctx, domain.Character{ID: "c1", Name: "林风"}).Err)

	require.NoError(t, svc.DeleteEntity(ctx, "ch1"))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, svc.Clear(ctx))
	assert.Zero(t, store.Len())

	assert.ErrorIs(t, NewIndexService(brokenStore{}, nil).DeleteEntity(ctx, "ch1"), errBroken)
}

func TestIndexService_ProjectsDoNotCollide(t *testing.T) {
	store := memory.NewRecordStore()
	svc := newTestIndexer(store, nil)
	ctx := context.Background()

	novelA := domain.Chapter{ID: "ch01", ProjectID: "novelA", Order: 1, Content: "林风拔出神剑。"}
	novelB := domain.Chapter{ID: "ch01", ProjectID: "novelB", Order: 1, Content: "苏瑶在山门等候。"}
	require.NoError(t, svc.IndexChapter(ctx, novelA).Err)
	require.NoError(t, svc.IndexChapter(ctx, novelB).Err)
	assert.Equal(t, 2, store.Len())

	builder := NewContextService(store, nil, domain.RetrievalSettings{})
	result, err := builder.BuildContext(ctx, "林风 神剑", 1000, domain.BuildOptions{ProjectID: "novelA"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "林风拔出神剑")

	excluded, err := builder.BuildContext(ctx, "林风 神剑", 1000,
		domain.BuildOptions{ProjectID: "novelA", ExcludeRelatedIDs: []string{"ch01"}})
	require.NoError(t, err)
	assert.Empty(t, excluded.Text)

	require.NoError(t, svc.DeleteEntity(ctx, domain.EntityKey("novelB", "ch01")))
	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "novelA", all[0].MetaString(domain.MetaProjectID))
}

func TestRecordID(t *testing.T) {
	a := RecordID(domain.RecordKindChapter, "ch1", domain.PartBody, 0)

	assert.Equal(t, a, RecordID(domain.RecordKindChapter, "ch1", domain.PartBody, 0))
	assert.NotEqual(t, a, RecordID(domain.RecordKindChapter, "ch1", domain.PartBody, 1))
	assert.NotEqual(t, a, RecordID(domain.RecordKindChapter, "ch1", domain.PartSummary, 0))
	assert.NotEqual(t, a, RecordID(domain.RecordKindStyleSample, "ch1", domain.PartBody, 0))
	assert.Len(t, a, 36)
}
