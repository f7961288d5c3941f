package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tasknest/backend/logging"
	"tasknest/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStore je uski interfejs ka skladištu taskova; implementira ga
// repositories.TaskRepository, a testovi ga zamenjuju fake skladištem.
type TaskStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	ExistsByOwnerAndTitle(ctx context.Context, ownerID primitive.ObjectID, title string, excludeID *primitive.ObjectID) (bool, error)
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Task, error)
	GetChildren(ctx context.Context, parentID primitive.ObjectID) ([]models.Task, error)
	CountIncompleteChildren(ctx context.Context, parentID primitive.ObjectID) (int64, error)
	Insert(ctx context.Context, task *models.Task) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type CategoryResolver interface {
	GetByName(ctx context.Context, ownerID primitive.ObjectID, name string) (*models.Category, error)
}

type Notifier interface {
	NotifyTaskEvent(eventType string, task *models.Task)
}

type TaskService struct {
	store      TaskStore
	users      UserDirectory
	categories CategoryResolver
	notifier   Notifier
}

func NewTaskService(store TaskStore, users UserDirectory, categories CategoryResolver, notifier Notifier) *TaskService {
	return &TaskService{
		store:      store,
		users:      users,
		categories: categories,
		notifier:   notifier,
	}
}

// TaskRequest nosi polja zahteva za kreiranje i izmenu taska.
// Pointer polja razlikuju "nije poslato" od prazne vrednosti; izmena
// menja samo poslata polja.
type TaskRequest struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	Status        *string  `json:"status"`
	ParentID      *string  `json:"parentId"`
	CategoryNames []string `json:"categoryNames"`
}

var categoryNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// HasDuplicateCategories vraća true ako lista sadrži ponovljeno ime kategorije.
func HasDuplicateCategories(names []string) bool {
	if len(names) < 2 {
		return false
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return true
		}
		seen[name] = true
	}
	return false
}

func validateCategoryNames(names []string) []string {
	var problems []string
	for _, name := range names {
		if !categoryNamePattern.MatchString(name) {
			problems = append(problems, fmt.Sprintf("category name %q contains invalid characters", name))
		}
	}
	return problems
}

// CreateTask kreira novi task za korisnika razrešenog iz konteksta autentifikacije.
func (s *TaskService) CreateTask(ctx context.Context, ownerUsername string, req TaskRequest) (*models.Task, error) {
	owner, err := s.users.GetByUsername(ctx, ownerUsername)
	if err != nil {
		return nil, err
	}

	// Validacija ulaza pre bilo kakvog pristupa bazi
	var problems []string
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		problems = append(problems, "title must not be empty")
	}
	status := models.StatusTodo
	if req.Status != nil {
		parsed, err := models.ParseTaskStatus(*req.Status)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			status = parsed
		}
	}
	problems = append(problems, validateCategoryNames(req.CategoryNames)...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, "; "))
	}

	exists, err := s.store.ExistsByOwnerAndTitle(ctx, owner.ID, *req.Title, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: title must be unique for the user", models.ErrConflict)
	}

	if HasDuplicateCategories(req.CategoryNames) {
		return nil, fmt.Errorf("%w: duplicate categories", models.ErrConflict)
	}

	// Svako ime kategorije mora da postoji za ovog vlasnika
	for _, name := range req.CategoryNames {
		if _, err := s.categories.GetByName(ctx, owner.ID, name); err != nil {
			return nil, err
		}
	}

	var parentID *primitive.ObjectID
	if req.ParentID != nil && *req.ParentID != "" {
		id, err := s.checkParent(ctx, *req.ParentID, owner.ID, nil)
		if err != nil {
			return nil, err
		}
		parentID = id
	}

	now := time.Now()
	task := &models.Task{
		OwnerID:    owner.ID,
		ParentID:   parentID,
		Title:      *req.Title,
		Status:     status,
		Categories: req.CategoryNames,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Description != nil {
		task.Description = *req.Description
	}

	created, err := s.store.Insert(ctx, task)
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created for user %s", created.ID.Hex(), ownerUsername)
	s.notifier.NotifyTaskEvent("TASK_CREATED", created)
	return created, nil
}

// UpdateTask primenjuje parcijalnu izmenu: menja samo polja poslata u zahtevu.
func (s *TaskService) UpdateTask(ctx context.Context, taskID primitive.ObjectID, actingUsername string, req TaskRequest) (*models.Task, error) {
	task, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	acting, err := s.users.GetByUsername(ctx, actingUsername)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(task, acting); err != nil {
		return nil, err
	}

	var problems []string
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		problems = append(problems, "title must not be empty")
	}
	var newStatus *models.TaskStatus
	if req.Status != nil {
		parsed, err := models.ParseTaskStatus(*req.Status)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			newStatus = &parsed
		}
	}
	problems = append(problems, validateCategoryNames(req.CategoryNames)...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, "; "))
	}

	if req.Title != nil {
		exists, err := s.store.ExistsByOwnerAndTitle(ctx, task.OwnerID, *req.Title, &taskID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: title must be unique for the user", models.ErrConflict)
		}
	}

	if HasDuplicateCategories(req.CategoryNames) {
		return nil, fmt.Errorf("%w: duplicate categories", models.ErrConflict)
	}

	// Promena statusa je blokirana dok god postoji nezavršen podzadatak
	if newStatus != nil && *newStatus != task.Status {
		if err := s.ValidateChildTaskCompletion(ctx, taskID); err != nil {
			return nil, err
		}
	}

	if req.CategoryNames != nil {
		for _, name := range req.CategoryNames {
			if _, err := s.categories.GetByName(ctx, task.OwnerID, name); err != nil {
				return nil, err
			}
		}
	}

	if req.ParentID != nil {
		if *req.ParentID == "" {
			// Prazan parentId otkačinje task od roditelja
			task.ParentID = nil
		} else {
			parentID, err := s.checkParent(ctx, *req.ParentID, task.OwnerID, &taskID)
			if err != nil {
				return nil, err
			}
			task.ParentID = parentID
		}
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if newStatus != nil {
		task.Status = *newStatus
	}
	if req.CategoryNames != nil {
		task.Categories = req.CategoryNames
	}
	task.UpdatedAt = time.Now()

	updated, err := s.store.Update(ctx, task)
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_UPDATED, Description: Task %s updated by user %s", taskID.Hex(), actingUsername)
	if newStatus != nil {
		s.notifier.NotifyTaskEvent("TASK_STATUS_CHANGED", updated)
	}
	return updated, nil
}

// ChangeTaskStatus menja status taska.
func (s *TaskService) ChangeTaskStatus(ctx context.Context, taskID primitive.ObjectID, actingUsername string, status string) (*models.Task, error) {
	newStatus, err := models.ParseTaskStatus(status)
	if err != nil {
		return nil, err
	}

	task, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	acting, err := s.users.GetByUsername(ctx, actingUsername)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(task, acting); err != nil {
		return nil, err
	}

	if err := s.ValidateChildTaskCompletion(ctx, taskID); err != nil {
		return nil, err
	}

	task.Status = newStatus
	task.UpdatedAt = time.Now()

	updated, err := s.store.Update(ctx, task)
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_STATUS_CHANGED, Description: Task %s moved to status %s by user %s", taskID.Hex(), newStatus, actingUsername)
	s.notifier.NotifyTaskEvent("TASK_STATUS_CHANGED", updated)
	return updated, nil
}

// DeleteTask briše task zajedno sa njegovim direktnim podzadacima.
// Redosled brisanja: prvo deca, na kraju roditelj, sekvencijalno i bez
// rollback-a; prekinuti poziv sme da se ponovi jer je brisanje idempotentno.
func (s *TaskService) DeleteTask(ctx context.Context, taskID primitive.ObjectID, actingUsername string) error {
	task, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	acting, err := s.users.GetByUsername(ctx, actingUsername)
	if err != nil {
		return err
	}
	if err := s.checkOwnership(task, acting); err != nil {
		return err
	}

	if err := s.ValidateChildTaskCompletion(ctx, taskID); err != nil {
		return err
	}

	children, err := s.store.GetChildren(ctx, taskID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.store.Delete(ctx, child.ID); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, taskID); err != nil {
		return err
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s and %d child tasks deleted by user %s", taskID.Hex(), len(children), actingUsername)
	s.notifier.NotifyTaskEvent("TASK_DELETED", task)
	return nil
}

// GetTaskByID vraća task; uz nested=true dodaje i direktne podzadatke.
func (s *TaskService) GetTaskByID(ctx context.Context, taskID primitive.ObjectID, nested bool) (*models.Task, error) {
	task, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if nested {
		children, err := s.store.GetChildren(ctx, taskID)
		if err != nil {
			return nil, err
		}
		task.SubTasks = children
	}
	return task, nil
}

func (s *TaskService) GetTasksForUser(ctx context.Context, username string) ([]models.Task, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.store.GetByOwner(ctx, user.ID)
}

func (s *TaskService) GetSubTasks(ctx context.Context, taskID primitive.ObjectID) ([]models.Task, error) {
	if _, err := s.store.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.GetChildren(ctx, taskID)
}

// ValidateChildTaskCompletion ne dozvoljava promenu statusa ni brisanje
// dok god task ima bar jedan direktan podzadatak koji nije završen.
func (s *TaskService) ValidateChildTaskCompletion(ctx context.Context, taskID primitive.ObjectID) error {
	count, err := s.store.CountIncompleteChildren(ctx, taskID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: cannot proceed with task %s while child tasks are not completed", models.ErrConflict, taskID.Hex())
	}
	return nil
}

// checkOwnership dozvoljava izmenu samo vlasniku taska ili administratoru.
func (s *TaskService) checkOwnership(task *models.Task, acting *models.User) error {
	if acting.Role == "admin" {
		return nil
	}
	if task.OwnerID != acting.ID {
		return fmt.Errorf("%w: task %s belongs to a different user", models.ErrAccessDenied, task.ID.Hex())
	}
	return nil
}

// checkParent proverava da roditelj postoji, da pripada istom vlasniku i da
// prekačinjanje ne bi napravilo ciklus u hijerarhiji.
func (s *TaskService) checkParent(ctx context.Context, parentHex string, ownerID primitive.ObjectID, taskID *primitive.ObjectID) (*primitive.ObjectID, error) {
	parentID, err := primitive.ObjectIDFromHex(parentHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid parent task ID format", models.ErrValidation)
	}

	parent, err := s.store.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: parent task %s belongs to a different user", models.ErrAccessDenied, parentID.Hex())
	}

	if taskID != nil {
		if err := s.checkHierarchyCycle(ctx, *taskID, parent); err != nil {
			return nil, err
		}
	}
	return &parentID, nil
}

// checkHierarchyCycle prati lanac predaka od novog roditelja naviše; ako se
// u lancu nađe sam task, hijerarhija bi prestala da bude šuma.
func (s *TaskService) checkHierarchyCycle(ctx context.Context, taskID primitive.ObjectID, parent *models.Task) error {
	current := parent
	for {
		if current.ID == taskID {
			return fmt.Errorf("%w: cannot move task %s under itself or its own descendant", models.ErrConflict, taskID.Hex())
		}
		if current.ParentID == nil {
			return nil
		}
		next, err := s.store.GetByID(ctx, *current.ParentID)
		if err != nil {
			return err
		}
		current = next
	}
}
