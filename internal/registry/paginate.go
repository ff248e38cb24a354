package registry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

type pageFetcher[T any] func(ctx context.Context, page int) (records []T, total int, err error)

// paginate walks pages until an empty page, the upstream total, or
// q.MaxRecords. Records fetched before an abort are yielded first; the abort
// is then yielded once as the terminal error.
func paginate[T any](ctx context.Context, c *Client, q Query, fetch pageFetcher[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yielded := 0
		page := 0
		failures := 0
		rateLimitRetried := false

		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			records, total, err := fetch(ctx, page)
			if err != nil {
				switch {
				case ctx.Err() != nil:
					yield(zero, ctx.Err())
					return
				case errors.Is(err, ErrRateLimited):
					if rateLimitRetried {
						yield(zero, fmt.Errorf("code %s page %d: %w", q.Code, page, err))
						return
					}
					rateLimitRetried = true
					c.log.Warn("registry rate limited, backing off", "code", q.Code, "page", page, "backoff", c.rateLimitBackoff)
					if err := sleepCtx(ctx, c.rateLimitBackoff); err != nil {
						yield(zero, err)
						return
					}
					continue
				case errors.Is(err, ErrPermanent):
					yield(zero, fmt.Errorf("code %s page %d: %w", q.Code, page, err))
					return
				default:
					failures++
					c.log.Warn("registry request failed", "code", q.Code, "page", page, "attempt", failures, "error", err)
					if failures >= MaxConsecutiveFailures {
						yield(zero, fmt.Errorf("code %s page %d: %d consecutive failures: %w", q.Code, page, failures, err))
						return
					}
					if err := sleepCtx(ctx, c.retryBackoff*retryMultiplier(failures)); err != nil {
						yield(zero, err)
						return
					}
					continue
				}
			}

			failures = 0
			rateLimitRetried = false

			if len(records) == 0 {
				return
			}

			for _, record := range records {
				if q.MaxRecords > 0 && yielded >= q.MaxRecords {
					return
				}
				if !yield(record, nil) {
					return
				}
				yielded++
			}

			if q.MaxRecords > 0 && yielded >= q.MaxRecords {
				return
			}
			if total > 0 && (page+1)*c.pageSize >= total {
				return
			}
			if len(records) < c.pageSize {
				return
			}
			page++
		}
	}
}

func retryMultiplier(attempt int) time.Duration {
	return time.Duration(attempt * attempt)
}
