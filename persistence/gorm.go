package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/gardenhub/shoot-events/config"
	"github.com/gardenhub/shoot-events/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB models. The wire types in the types package stay free of gorm concerns.

type projectModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Namespace string `gorm:"uniqueIndex"`
	Labels    types.JSONStringMap
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (projectModel) TableName() string { return "projects" }

type projectMemberModel struct {
	ID        uint   `gorm:"primaryKey"`
	Namespace string `gorm:"index:idx_member,unique"`
	Email     string `gorm:"index:idx_member,unique;index"`
}

func (projectMemberModel) TableName() string { return "project_members" }

type administratorModel struct {
	Email string `gorm:"primaryKey"`
}

func (administratorModel) TableName() string { return "administrators" }

type issueModel struct {
	Number    int    `gorm:"primaryKey"`
	Namespace string `gorm:"index:idx_issue_target"`
	Name      string `gorm:"index:idx_issue_target"`
	Title     string
	State     string
	UpdatedAt time.Time
}

func (issueModel) TableName() string { return "issues" }

type commentModel struct {
	ID        int `gorm:"primaryKey"`
	Number    int `gorm:"index"`
	Author    string
	Body      string
	CreatedAt time.Time
}

func (commentModel) TableName() string { return "comments" }

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens the configured SQL database and migrates the schema.
func NewGormStore(cfg *config.Config) (*GormStore, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the store
	}
	return &GormStore{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&projectModel{}, &projectMemberModel{}, &administratorModel{}, &issueModel{}, &commentModel{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (s *GormStore) ListProjects(ctx context.Context, memberEmail string) ([]*types.Project, error) {
	memberships := make([]projectMemberModel, 0)
	err := s.db.WithContext(ctx).Where("email = ?", memberEmail).Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	namespaces := make([]string, 0, len(memberships))
	for _, m := range memberships {
		namespaces = append(namespaces, m.Namespace)
	}
	if len(namespaces) == 0 {
		return []*types.Project{}, nil
	}
	models := make([]projectModel, 0)
	err = s.db.WithContext(ctx).Where("namespace IN ?", namespaces).Order("namespace").Find(&models).Error
	if err != nil {
		return nil, err
	}
	return s.toProjects(ctx, models)
}

func (s *GormStore) ListAllProjects(ctx context.Context) ([]*types.Project, error) {
	models := make([]projectModel, 0)
	err := s.db.WithContext(ctx).Order("namespace").Find(&models).Error
	if err != nil {
		return nil, err
	}
	return s.toProjects(ctx, models)
}

func (s *GormStore) toProjects(ctx context.Context, models []projectModel) ([]*types.Project, error) {
	projects := make([]*types.Project, 0, len(models))
	for _, m := range models {
		members := make([]projectMemberModel, 0)
		err := s.db.WithContext(ctx).Where("namespace = ?", m.Namespace).Find(&members).Error
		if err != nil {
			return nil, err
		}
		emails := make([]string, 0, len(members))
		for _, pm := range members {
			emails = append(emails, pm.Email)
		}
		projects = append(projects, &types.Project{
			Name:      m.Name,
			Namespace: m.Namespace,
			Labels:    m.Labels,
			Members:   emails,
		})
	}
	return projects, nil
}

func (s *GormStore) StoreProject(ctx context.Context, project types.Project) error {
	m := projectModel{Name: project.Name, Namespace: project.Namespace, Labels: project.Labels}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (s *GormStore) AddProjectMember(ctx context.Context, namespace, email string) error {
	m := projectMemberModel{Namespace: namespace, Email: email}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (s *GormStore) RemoveProjectMember(ctx context.Context, namespace, email string) error {
	return s.db.WithContext(ctx).Where("namespace = ? AND email = ?", namespace, email).Delete(&projectMemberModel{}).Error
}

func (s *GormStore) IsAdmin(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&administratorModel{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) StoreAdministrator(ctx context.Context, email string) error {
	m := administratorModel{Email: email}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (s *GormStore) RemoveAdministrator(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Delete(&administratorModel{Email: email}).Error
}

func (s *GormStore) ListAdministrators(ctx context.Context) ([]string, error) {
	models := make([]administratorModel, 0)
	err := s.db.WithContext(ctx).Order("email").Find(&models).Error
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(models))
	for _, m := range models {
		emails = append(emails, m.Email)
	}
	return emails, nil
}

func (s *GormStore) ListIssues(ctx context.Context) ([]types.Issue, error) {
	models := make([]issueModel, 0)
	err := s.db.WithContext(ctx).Order("number").Find(&models).Error
	if err != nil {
		return nil, err
	}
	issues := make([]types.Issue, 0, len(models))
	for _, m := range models {
		issues = append(issues, types.Issue{
			Number:    m.Number,
			Namespace: m.Namespace,
			Name:      m.Name,
			Title:     m.Title,
			State:     m.State,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return issues, nil
}

func (s *GormStore) StoreIssue(ctx context.Context, issue types.Issue) error {
	m := issueModel{
		Number:    issue.Number,
		Namespace: issue.Namespace,
		Name:      issue.Name,
		Title:     issue.Title,
		State:     issue.State,
		UpdatedAt: issue.UpdatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (s *GormStore) DeleteIssue(ctx context.Context, number int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("number = ?", number).Delete(&commentModel{}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&issueModel{Number: number}).Error
	})
}

func (s *GormStore) StoreComment(ctx context.Context, comment types.Comment) error {
	m := commentModel{
		ID:        comment.Id,
		Number:    comment.Number,
		Author:    comment.Author,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// CommentPage returns one page of an issue's comments in creation order.
// Pages are the unit of the lazy comment sequence consumed by the comments
// subscription handler.
func (s *GormStore) CommentPage(ctx context.Context, number, offset, limit int) ([]types.Comment, error) {
	models := make([]commentModel, 0)
	err := s.db.WithContext(ctx).Where("number = ?", number).Order("created_at, id").Limit(limit).Offset(offset).Find(&models).Error
	if err != nil {
		return nil, err
	}
	comments := make([]types.Comment, 0, len(models))
	for _, m := range models {
		comments = append(comments, types.Comment{
			Id:        m.ID,
			Number:    m.Number,
			Author:    m.Author,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}
	return comments, nil
}

func (s *GormStore) Close() error {
	return nil
}
