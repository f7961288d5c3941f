package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tasknest/backend/logging"
	"tasknest/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CategoryStore interface {
	GetByName(ctx context.Context, ownerID primitive.ObjectID, name string) (*models.Category, error)
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Category, error)
	Insert(ctx context.Context, category *models.Category) (*models.Category, error)
	Delete(ctx context.Context, ownerID primitive.ObjectID, name string) error
}

type ownerTasks interface {
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Task, error)
}

type CategoryService struct {
	store CategoryStore
	users UserDirectory
	tasks ownerTasks
}

func NewCategoryService(store CategoryStore, users UserDirectory, tasks ownerTasks) *CategoryService {
	return &CategoryService{store: store, users: users, tasks: tasks}
}

// CreateCategory kreira kategoriju; ime mora biti jedinstveno za korisnika.
func (s *CategoryService) CreateCategory(ctx context.Context, username, name string) (*models.Category, error) {
	owner, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: category name must not be empty", models.ErrValidation)
	}
	if !categoryNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: category name %q contains invalid characters", models.ErrValidation, name)
	}

	if _, err := s.store.GetByName(ctx, owner.ID, name); err == nil {
		return nil, fmt.Errorf("%w: category name must be unique for the user", models.ErrConflict)
	}

	category := &models.Category{
		OwnerID:   owner.ID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	created, err := s.store.Insert(ctx, category)
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: CATEGORY_CREATED, Description: Category %s created for user %s", name, username)
	return created, nil
}

func (s *CategoryService) GetCategories(ctx context.Context, username string) ([]models.Category, error) {
	owner, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.store.GetByOwner(ctx, owner.ID)
}

// DeleteCategory briše kategoriju samo ako je nijedan task korisnika ne koristi.
func (s *CategoryService) DeleteCategory(ctx context.Context, username, name string) error {
	owner, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	tasks, err := s.tasks.GetByOwner(ctx, owner.ID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		for _, category := range task.Categories {
			if category == name {
				return fmt.Errorf("%w: category %s is still used by task %s", models.ErrConflict, name, task.ID.Hex())
			}
		}
	}

	if err := s.store.Delete(ctx, owner.ID, name); err != nil {
		return err
	}

	logging.Logger.Infof("Event ID: CATEGORY_DELETED, Description: Category %s deleted for user %s", name, username)
	return nil
}
