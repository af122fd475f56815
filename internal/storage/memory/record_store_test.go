package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

func record(url string, crawled time.Time) funding.FundingEventRecord {
	return funding.FundingEventRecord{
		CompanyName:    "Acme Robotics",
		NormalizedName: "acmerobotics",
		ArticleURL:     url,
		CrawlDate:      crawled,
	}
}

func TestRecordStoreUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	now := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	batch := []funding.FundingEventRecord{
		record("https://a.example/1", now),
		record("https://a.example/2", now),
	}

	first, err := store.UpsertMany(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := store.UpsertMany(context.Background(), batch)
	require.NoError(t, err)
	require.Empty(t, second)

	all, err := store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRecordStoreNeverOverwrites(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	now := time.Now().UTC()
	original := record("https://a.example/1", now)
	changed := original
	changed.CompanyName = "Someone Else"

	_, err := store.UpsertMany(context.Background(), []funding.FundingEventRecord{original})
	require.NoError(t, err)
	_, err = store.UpsertMany(context.Background(), []funding.FundingEventRecord{changed})
	require.NoError(t, err)

	all, err := store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Acme Robotics", all[0].CompanyName)
}

func TestRecordStoreConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	rec := record("https://a.example/race", time.Now().UTC())

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := store.UpsertMany(context.Background(), []funding.FundingEventRecord{rec})
			require.NoError(t, err)
			mu.Lock()
			total += len(inserted)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, total)
}

func TestRecordStoreQueryAllOrdering(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)
	_, err := store.UpsertMany(context.Background(), []funding.FundingEventRecord{
		record("https://a.example/b", late),
		record("https://a.example/z", early),
		record("https://a.example/a", late),
	})
	require.NoError(t, err)

	all, err := store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://a.example/z", all[0].ArticleURL)
	require.Equal(t, "https://a.example/a", all[1].ArticleURL)
	require.Equal(t, "https://a.example/b", all[2].ArticleURL)
}
