// Package services adapts the persistence store and the journal cache to the
// collaborator interfaces the websocket hubs consume.
package services

import (
	"context"

	"github.com/gardenhub/shoot-events/journal"
	"github.com/gardenhub/shoot-events/persistence"
	"github.com/gardenhub/shoot-events/types"
	"github.com/gardenhub/shoot-events/ws"
)

// ProjectService lists the projects visible to a user. Administrators see
// every project, everybody else sees the projects they are a member of.
type ProjectService struct {
	store  persistence.Store
	admins *AdministratorsService
}

func NewProjectService(store persistence.Store, admins *AdministratorsService) *ProjectService {
	return &ProjectService{store: store, admins: admins}
}

func (s *ProjectService) List(ctx context.Context, user *types.User) ([]*types.Project, error) {
	isAdmin, err := s.admins.IsAdmin(ctx, user)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return s.store.ListAllProjects(ctx)
	}
	return s.store.ListProjects(ctx, user.Id)
}

// AdministratorsService answers admin-membership checks against the static
// configuration list first and the store second. The static list lets
// operators bootstrap a fresh installation before any administrator row
// exists.
type AdministratorsService struct {
	store  persistence.Store
	static map[string]struct{}
}

func NewAdministratorsService(store persistence.Store, staticAdmins []string) *AdministratorsService {
	static := make(map[string]struct{}, len(staticAdmins))
	for _, email := range staticAdmins {
		static[email] = struct{}{}
	}
	return &AdministratorsService{store: store, static: static}
}

func (s *AdministratorsService) IsAdmin(ctx context.Context, user *types.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	if _, ok := s.static[user.Id]; ok {
		return true, nil
	}
	return s.store.IsAdmin(ctx, user.Id)
}

// commentSource narrows *journal.CommentSource to the hub's iterator
// interface.
type commentSource struct {
	source *journal.CommentSource
}

func NewCommentSource(source *journal.CommentSource) ws.CommentSource {
	return &commentSource{source: source}
}

func (s *commentSource) GetIssueComments(number int) ws.CommentIterator {
	return s.source.GetIssueComments(number)
}
