// internal/common/pagination/paginator.go
package pagination

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"licensure-workers/internal/common/errors"
)

const defaultMaxQueryCalls = 20

// QueryFn issues one native store query: start key, page limit, raw items
// plus the store's own continuation key back.
type QueryFn func(ctx context.Context, startKey map[string]types.AttributeValue, limit int32) (items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue, err error)

// MatchFunc is the client-side filter the store could not apply natively.
type MatchFunc func(item map[string]types.AttributeValue) bool

// PageResult is one exact page of the filtered view.
type PageResult struct {
	Items []map[string]types.AttributeValue
	// NextCursor resumes after the last item of Items. Empty when the
	// filtered view is exhausted.
	NextCursor string
	// StoreCalls counts the native queries spent filling this page.
	StoreCalls int
}

// Paginator compensates for stores that apply the page limit before any
// filtering: it re-queries until pageSize items match or the store is
// exhausted, and derives the resume cursor from the last item it actually
// returns rather than the store's raw continuation key.
type Paginator struct {
	// KeyAttributes are projected from an item to rebuild its store key:
	// the table keys, plus the index keys when querying a secondary index.
	KeyAttributes []string
	// MaxQueryCalls bounds the compensation loop per page. Zero means the
	// package default.
	MaxQueryCalls int
}

func (p *Paginator) Page(ctx context.Context, queryFn QueryFn, cursor string, pageSize int, match MatchFunc) (*PageResult, error) {
	if pageSize < 1 {
		return nil, errors.NewInvalidPageSizeError(pageSize, 0)
	}

	var startKey map[string]types.AttributeValue
	if cursor != "" {
		key, err := DecodeCursor(cursor)
		if err != nil {
			return nil, errors.NewInvalidCursorError(err)
		}
		startKey = key
	}

	maxCalls := p.MaxQueryCalls
	if maxCalls <= 0 {
		maxCalls = defaultMaxQueryCalls
	}

	matched := make([]map[string]types.AttributeValue, 0, pageSize)
	calls := 0
	for {
		if calls >= maxCalls {
			return nil, errors.NewQueryBudgetReachedError(calls)
		}

		items, lastKey, err := queryFn(ctx, startKey, int32(pageSize))
		calls++
		if err != nil {
			return nil, translateStoreError(err)
		}

		for _, item := range items {
			if match == nil || match(item) {
				matched = append(matched, item)
			}
		}

		// Surplus beyond the page proves more matches exist: trim it and
		// resume after the last item kept.
		if len(matched) > pageSize {
			matched = matched[:pageSize]
			next, err := p.cursorFromItem(matched[len(matched)-1])
			if err != nil {
				return nil, err
			}
			return &PageResult{Items: matched, NextCursor: next, StoreCalls: calls}, nil
		}

		if len(matched) == pageSize {
			result := &PageResult{Items: matched, StoreCalls: calls}
			if lastKey != nil {
				next, err := p.cursorFromItem(matched[len(matched)-1])
				if err != nil {
					return nil, err
				}
				result.NextCursor = next
			}
			return result, nil
		}

		if lastKey == nil {
			return &PageResult{Items: matched, StoreCalls: calls}, nil
		}
		startKey = lastKey
	}
}

// cursorFromItem projects the configured key attributes out of a returned
// item. A missing attribute means the projection is misconfigured for the
// queried index.
func (p *Paginator) cursorFromItem(item map[string]types.AttributeValue) (string, error) {
	key := make(map[string]types.AttributeValue, len(p.KeyAttributes))
	for _, name := range p.KeyAttributes {
		av, ok := item[name]
		if !ok {
			return "", fmt.Errorf("item is missing key attribute %q", name)
		}
		key[name] = av
	}
	return EncodeCursor(key)
}

// translateStoreError keeps the caller-fault / store-fault split: a start
// key the store rejects is the caller's malformed cursor, throttles and
// timeouts stay retryable, and everything else surfaces with its chain
// intact.
func translateStoreError(err error) error {
	var apiErr smithy.APIError
	if goerrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ValidationException":
			return errors.NewInvalidCursorError(err)
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return errors.NewStoreThrottledError(err)
		}
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return errors.NewDeadlineExceededError("query", err)
	}
	return errors.NewStoreUnavailableError("query", err)
}
