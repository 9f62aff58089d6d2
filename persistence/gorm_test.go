package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/gardenhub/shoot-events/config"
	"github.com/gardenhub/shoot-events/types"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{
			Type: "sqlite",
			DSN:  ":memory:",
		},
	}
	store, err := NewGormStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if store == nil {
		t.Fatal("no store")
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewGormStoreUnconfigured(t *testing.T) {
	store, err := NewGormStore(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	assert.Nil(t, store)

	_, err = NewGormStore(&config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "oracle", DSN: "x"},
	})
	assert.Error(t, err)
}

func TestProjectsAndMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.StoreProject(ctx, types.Project{
		Name:      "core",
		Namespace: "garden-core",
		Labels:    types.JSONStringMap{"env": "prod"},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.StoreProject(ctx, types.Project{Name: "dev", Namespace: "garden-dev"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddProjectMember(ctx, "garden-core", "alice@example.org"); err != nil {
		t.Fatal(err)
	}
	// adding twice must not duplicate
	if err := store.AddProjectMember(ctx, "garden-core", "alice@example.org"); err != nil {
		t.Fatal(err)
	}

	projects, err := store.ListProjects(ctx, "alice@example.org")
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, projects, 1) {
		assert.Equal(t, "garden-core", projects[0].Namespace)
		assert.Equal(t, types.JSONStringMap{"env": "prod"}, projects[0].Labels)
		assert.Equal(t, []string{"alice@example.org"}, projects[0].Members)
	}

	all, err := store.ListAllProjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, all, 2)

	if err := store.RemoveProjectMember(ctx, "garden-core", "alice@example.org"); err != nil {
		t.Fatal(err)
	}
	projects, err = store.ListProjects(ctx, "alice@example.org")
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, projects)
}

func TestAdministrators(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	isAdmin, err := store.IsAdmin(ctx, "root@example.org")
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, isAdmin)

	if err := store.StoreAdministrator(ctx, "root@example.org"); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreAdministrator(ctx, "root@example.org"); err != nil {
		t.Fatal(err)
	}
	isAdmin, err = store.IsAdmin(ctx, "root@example.org")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, isAdmin)

	admins, err := store.ListAdministrators(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []string{"root@example.org"}, admins)

	if err := store.RemoveAdministrator(ctx, "root@example.org"); err != nil {
		t.Fatal(err)
	}
	isAdmin, err = store.IsAdmin(ctx, "root@example.org")
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, isAdmin)
}

func TestIssuesAndComments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := types.Issue{
		Number:    7,
		Namespace: "garden-core",
		Name:      "crown",
		Title:     "node down",
		State:     "open",
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.StoreIssue(ctx, issue); err != nil {
		t.Fatal(err)
	}
	issue.Title = "node still down"
	if err := store.StoreIssue(ctx, issue); err != nil {
		t.Fatal(err)
	}

	issues, err := store.ListIssues(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, issues, 1) {
		assert.Equal(t, "node still down", issues[0].Title)
	}

	for i := 0; i < 5; i++ {
		comment := types.Comment{
			Id:        i + 1,
			Number:    7,
			Author:    "gardener",
			Body:      "body",
			CreatedAt: time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC),
		}
		if err := store.StoreComment(ctx, comment); err != nil {
			t.Fatal(err)
		}
	}

	page, err := store.CommentPage(ctx, 7, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, page, 2) {
		assert.Equal(t, 1, page[0].Id)
		assert.Equal(t, 2, page[1].Id)
	}
	page, err = store.CommentPage(ctx, 7, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, page, 1)

	// deleting the issue removes its comments too
	if err := store.DeleteIssue(ctx, 7); err != nil {
		t.Fatal(err)
	}
	issues, err = store.ListIssues(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, issues)
	page, err = store.CommentPage(ctx, 7, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, page)
}
