package ws

import (
	"context"

	"github.com/gardenhub/shoot-events/filter"
	"github.com/gardenhub/shoot-events/types"
)

// Collaborator interfaces consumed by the subscription handlers. They are
// injected via NewHub so tests can substitute fakes.

// ShootService lists and reads cluster resources on behalf of a user. An
// empty namespace lists across all namespaces.
type ShootService interface {
	List(ctx context.Context, user *types.User, namespace string, flt *filter.Filter) ([]types.Shoot, error)
	Read(ctx context.Context, user *types.User, name, namespace string) (types.Shoot, error)
}

// ProjectLister returns the projects visible to the user. For
// administrators this is every project the system knows of.
type ProjectLister interface {
	List(ctx context.Context, user *types.User) ([]*types.Project, error)
}

// Administrators is the admin-membership check.
type Administrators interface {
	IsAdmin(ctx context.Context, user *types.User) (bool, error)
}

// JournalCache supplies cached issue data. Implementations must support
// concurrent reads without locking the caller.
type JournalCache interface {
	GetIssues() ([]types.Issue, error)
	GetIssueNumbersForNameAndNamespace(name, namespace string) ([]int, error)
}

// CommentIterator is a lazy, finite sequence of comment batches. Next
// returns a nil slice once the sequence is exhausted.
type CommentIterator interface {
	Next(ctx context.Context) ([]types.Comment, error)
}

// CommentSource produces a fresh comment iterator per call; each call
// restarts the sequence.
type CommentSource interface {
	GetIssueComments(number int) CommentIterator
}

// Services bundles the collaborators of one hub. Hubs for the shoots
// namespace leave the journal fields nil and vice versa.
type Services struct {
	Shoots   ShootService
	Projects ProjectLister
	Admins   Administrators
	Journal  JournalCache
	Comments CommentSource
	Filters  filter.Filters
}
