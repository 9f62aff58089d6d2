package journal

import (
	"context"
	"testing"
	"time"

	"github.com/gardenhub/shoot-events/types"
	"github.com/stretchr/testify/assert"
)

type fakePageLister struct {
	comments map[int][]types.Comment
	calls    int
}

func (f *fakePageLister) CommentPage(ctx context.Context, number, offset, limit int) ([]types.Comment, error) {
	f.calls++
	all := f.comments[number]
	if offset >= len(all) {
		return []types.Comment{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func testComments(number, n int) []types.Comment {
	comments := make([]types.Comment, 0, n)
	for i := 0; i < n; i++ {
		comments = append(comments, types.Comment{
			Id:        i + 1,
			Number:    number,
			Author:    "gardener",
			Body:      "body",
			CreatedAt: time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC),
		})
	}
	return comments
}

func drain(t *testing.T, it *CommentIterator) []types.Comment {
	t.Helper()
	collected := make([]types.Comment, 0)
	for {
		page, err := it.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if page == nil {
			return collected
		}
		collected = append(collected, page...)
	}
}

func TestIteratorPaging(t *testing.T) {
	cache := newTestCache(t)
	pages := &fakePageLister{comments: map[int][]types.Comment{1: testComments(1, 5)}}
	source, err := NewCommentSource(pages, cache, 2, 8)
	if err != nil {
		t.Fatal(err)
	}

	comments := drain(t, source.GetIssueComments(1))
	assert.Len(t, comments, 5)
	assert.Equal(t, 1, comments[0].Id)
	assert.Equal(t, 5, comments[4].Id)

	// exhausted iterator stays exhausted
	it := source.GetIssueComments(1)
	_ = drain(t, it)
	page, err := it.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Nil(t, page)
}

func TestIteratorEmptyIssue(t *testing.T) {
	cache := newTestCache(t)
	pages := &fakePageLister{comments: map[int][]types.Comment{}}
	source, err := NewCommentSource(pages, cache, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	page, err := source.GetIssueComments(42).Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Nil(t, page)
}

func TestCommentPagesCachedByUpdatedAt(t *testing.T) {
	cache := newTestCache(t)
	issue := testIssue(1, "garden-core", "crown", "a")
	if _, err := cache.UpdateIssue(issue); err != nil {
		t.Fatal(err)
	}
	pages := &fakePageLister{comments: map[int][]types.Comment{1: testComments(1, 3)}}
	source, err := NewCommentSource(pages, cache, 2, 8)
	if err != nil {
		t.Fatal(err)
	}

	first := drain(t, source.GetIssueComments(1))
	callsAfterFirst := pages.calls
	second := drain(t, source.GetIssueComments(1))
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, pages.calls, "replay must not hit the page lister")

	// a newer updatedAt invalidates the cached pages
	issue.UpdatedAt = issue.UpdatedAt.Add(time.Hour)
	if _, err := cache.UpdateIssue(issue); err != nil {
		t.Fatal(err)
	}
	pages.comments[1] = testComments(1, 4)
	third := drain(t, source.GetIssueComments(1))
	assert.Len(t, third, 4)
	assert.Greater(t, pages.calls, callsAfterFirst)
}
