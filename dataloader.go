package main

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	CreatorLoader *dataloader.Loader[string, *Creator]
}

// NewDataLoaders creates new dataloaders backed by st.
func NewDataLoaders(st *store) *DataLoaders {
	return &DataLoaders{
		CreatorLoader: dataloader.NewBatchedLoader(creatorBatchFn(st), dataloader.WithWait[string, *Creator](2*time.Millisecond)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// creatorBatchFn loads every requested creator with one query. Keys without a
// row resolve to errNotFound.
func creatorBatchFn(st *store) dataloader.BatchFunc[string, *Creator] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*Creator] {
		results := make([]*dataloader.Result[*Creator], len(keys))
		if len(keys) == 0 {
			return results
		}

		creators, err := st.creatorsByIDs(ctx, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*Creator]{Error: err}
			}
			return results
		}

		byID := make(map[string]*Creator, len(creators))
		for _, c := range creators {
			byID[c.ID] = c
		}
		for i, key := range keys {
			if c, ok := byID[key]; ok {
				results[i] = &dataloader.Result[*Creator]{Data: c}
			} else {
				results[i] = &dataloader.Result[*Creator]{Error: fmt.Errorf("creator %s: %w", key, errNotFound)}
			}
		}
		return results
	}
}
