package persistence

import (
	"context"

	"github.com/gardenhub/shoot-events/types"
)

// Store is the backing store for projects, project members, administrators
// and the journal. The subscription core consumes it through the narrower
// collaborator interfaces defined in the ws package.
type Store interface {
	ListProjects(ctx context.Context, memberEmail string) ([]*types.Project, error)
	ListAllProjects(ctx context.Context) ([]*types.Project, error)
	StoreProject(ctx context.Context, project types.Project) error
	AddProjectMember(ctx context.Context, namespace, email string) error
	RemoveProjectMember(ctx context.Context, namespace, email string) error

	IsAdmin(ctx context.Context, email string) (bool, error)
	StoreAdministrator(ctx context.Context, email string) error
	RemoveAdministrator(ctx context.Context, email string) error
	ListAdministrators(ctx context.Context) ([]string, error)

	ListIssues(ctx context.Context) ([]types.Issue, error)
	StoreIssue(ctx context.Context, issue types.Issue) error
	DeleteIssue(ctx context.Context, number int) error
	StoreComment(ctx context.Context, comment types.Comment) error
	CommentPage(ctx context.Context, number, offset, limit int) ([]types.Comment, error)

	Close() error
}
