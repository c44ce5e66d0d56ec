package worker

import (
	"context"

	"github.com/ppiankov/langlearn/internal/model"
)

// RecordFetcher fetches a single record by id
type RecordFetcher interface {
	GetRecord(ctx context.Context, id uint64) (model.Record, error)
}

// FetchJob fetches one record
type FetchJob struct {
	Index   int
	ID      uint64
	Fetcher RecordFetcher
}

// Execute runs the fetch
func (j *FetchJob) Execute(ctx context.Context) Result {
	rec, err := j.Fetcher.GetRecord(ctx, j.ID)
	return &FetchResult{Index: j.Index, ID: j.ID, Record: rec, Error: err}
}

// FetchResult is the outcome of one record fetch
type FetchResult struct {
	Index  int
	ID     uint64
	Record model.Record
	Error  error
}

func (r *FetchResult) GetError() error {
	return r.Error
}

// BatchFetcher fetches many records concurrently
type BatchFetcher struct {
	fetcher     RecordFetcher
	concurrency int
}

// NewBatchFetcher creates a batch fetcher
func NewBatchFetcher(fetcher RecordFetcher, concurrency int) *BatchFetcher {
	return &BatchFetcher{
		fetcher:     fetcher,
		concurrency: concurrency,
	}
}

// FetchIDs fetches every id and returns one result per id in input order.
// Failed fetches carry their error; the batch itself never fails.
func (b *BatchFetcher) FetchIDs(ctx context.Context, ids []uint64) []*FetchResult {
	if len(ids) == 0 {
		return []*FetchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, id := range ids {
		if !pool.Submit(&FetchJob{Index: i, ID: id, Fetcher: b.fetcher}) {
			break
		}
	}

	raw := pool.Wait()
	byIndex := make(map[int]*FetchResult, len(raw))
	for _, r := range raw {
		fr := r.(*FetchResult)
		byIndex[fr.Index] = fr
	}

	// Jobs never run because ctx ended still get a result
	results := make([]*FetchResult, 0, len(ids))
	for i, id := range ids {
		if fr, ok := byIndex[i]; ok {
			results = append(results, fr)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		results = append(results, &FetchResult{Index: i, ID: id, Error: err})
	}
	return results
}
