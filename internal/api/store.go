package api

import (
	"context"
	"errors"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/policy"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskStore 是任务持久化的抽象。TaskByID 在记录不存在时返回 (nil, nil)。
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	TaskByID(ctx context.Context, id uint) (*model.Task, error)
	ListTasks(ctx context.Context, scope policy.TaskScope, filter policy.Filter) ([]model.Task, error)
	SaveTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id uint) error
}

// UserStore 是用户持久化的抽象，同时满足 auth.UserStore 与 policy.UserDirectory。
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id uint) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	EmailOrUsernameTaken(ctx context.Context, email, username string) (bool, error)
	TeamMemberIDs(ctx context.Context, team string) ([]uint, error)
}

type dbTaskStore struct {
	db *gorm.DB
}

func (s dbTaskStore) CreateTask(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

func (s dbTaskStore) TaskByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).
		Preload("Assignee").
		Preload("Creator").
		First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s dbTaskStore) ListTasks(ctx context.Context, scope policy.TaskScope, filter policy.Filter) ([]model.Task, error) {
	tasks := []model.Task{}
	q := s.db.WithContext(ctx).Model(&model.Task{})
	q = scope.Apply(q)
	q = filter.Apply(q)
	if err := q.Preload("Assignee").Preload("Creator").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s dbTaskStore) SaveTask(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(task).Error
}

func (s dbTaskStore) DeleteTask(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.Task{}, id).Error
}

type dbUserStore struct {
	db *gorm.DB
}

func (s dbUserStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error
}

func (s dbUserStore) UserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) EmailOrUsernameTaken(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s dbUserStore) TeamMemberIDs(ctx context.Context, team string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("team = ?", team).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
