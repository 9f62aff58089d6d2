package journal

import (
	"context"
	"time"

	"github.com/gardenhub/shoot-events/types"
	lru "github.com/hashicorp/golang-lru"
)

const (
	defaultCommentPageSize  = 100
	defaultCommentCacheSize = 128
)

// PageLister supplies one page of an issue's comments, in creation order.
// The persistence store implements this via LIMIT/OFFSET queries.
type PageLister interface {
	CommentPage(ctx context.Context, number, offset, limit int) ([]types.Comment, error)
}

// CommentIterator is a lazy, finite, restartable sequence of comment
// batches. Next returns a nil slice once the sequence is exhausted.
// Obtaining a fresh iterator restarts the sequence from the beginning.
type CommentIterator struct {
	next func(ctx context.Context) ([]types.Comment, error)
}

func (it *CommentIterator) Next(ctx context.Context) ([]types.Comment, error) {
	return it.next(ctx)
}

type cachedComments struct {
	updatedAt time.Time
	pages     [][]types.Comment
}

// CommentSource produces comment iterators for issue numbers, keeping the
// pages of recently read issues in an LRU cache. A cached entry is reused
// only while the issue's updatedAt is unchanged.
type CommentSource struct {
	pages    PageLister
	issues   *Cache
	pageSize int
	recent   *lru.Cache
}

func NewCommentSource(pages PageLister, issues *Cache, pageSize, cacheSize int) (*CommentSource, error) {
	if pageSize <= 0 {
		pageSize = defaultCommentPageSize
	}
	if cacheSize <= 0 {
		cacheSize = defaultCommentCacheSize
	}
	recent, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &CommentSource{
		pages:    pages,
		issues:   issues,
		pageSize: pageSize,
		recent:   recent,
	}, nil
}

// GetIssueComments returns a fresh iterator over the comment batches of the
// given issue.
func (s *CommentSource) GetIssueComments(number int) *CommentIterator {
	issue, found, err := s.issues.GetIssue(number)
	if err == nil && found {
		if entry, ok := s.recent.Get(number); ok {
			cached := entry.(cachedComments)
			if cached.updatedAt.Equal(issue.UpdatedAt) {
				return s.replayIterator(cached.pages)
			}
			s.recent.Remove(number)
		}
	}
	return s.fetchIterator(number, issue.UpdatedAt, found)
}

func (s *CommentSource) replayIterator(pages [][]types.Comment) *CommentIterator {
	idx := 0
	return &CommentIterator{next: func(ctx context.Context) ([]types.Comment, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if idx >= len(pages) {
			return nil, nil
		}
		page := pages[idx]
		idx++
		return page, nil
	}}
}

func (s *CommentSource) fetchIterator(number int, updatedAt time.Time, cacheable bool) *CommentIterator {
	offset := 0
	done := false
	collected := make([][]types.Comment, 0)
	return &CommentIterator{next: func(ctx context.Context) ([]types.Comment, error) {
		if done {
			return nil, nil
		}
		page, err := s.pages.CommentPage(ctx, number, offset, s.pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			done = true
			if cacheable {
				s.recent.Add(number, cachedComments{updatedAt: updatedAt, pages: collected})
			}
			return nil, nil
		}
		offset += len(page)
		if len(page) < s.pageSize {
			done = true
		}
		collected = append(collected, page)
		if done && cacheable {
			s.recent.Add(number, cachedComments{updatedAt: updatedAt, pages: collected})
		}
		return page, nil
	}}
}
