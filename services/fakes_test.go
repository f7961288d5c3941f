package services

import (
	"context"
	"fmt"
	"sync"

	"tasknest/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeTaskStore is an in-memory TaskStore so the engine can be tested
// without a running MongoDB.
type fakeTaskStore struct {
	mu    sync.RWMutex
	tasks map[primitive.ObjectID]models.Task

	failUpdate bool
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[primitive.ObjectID]models.Task)}
}

func cloneTask(t models.Task) models.Task {
	out := t
	if t.ParentID != nil {
		pid := *t.ParentID
		out.ParentID = &pid
	}
	if t.Categories != nil {
		out.Categories = append([]string(nil), t.Categories...)
	}
	return out
}

func (s *fakeTaskStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, id.Hex())
	}
	out := cloneTask(task)
	return &out, nil
}

func (s *fakeTaskStore) ExistsByOwnerAndTitle(_ context.Context, ownerID primitive.ObjectID, title string, excludeID *primitive.ObjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, task := range s.tasks {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if task.OwnerID == ownerID && task.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeTaskStore) GetByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Task
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			out = append(out, cloneTask(task))
		}
	}
	return out, nil
}

func (s *fakeTaskStore) GetChildren(_ context.Context, parentID primitive.ObjectID) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Task
	for _, task := range s.tasks {
		if task.ParentID != nil && *task.ParentID == parentID {
			out = append(out, cloneTask(task))
		}
	}
	return out, nil
}

func (s *fakeTaskStore) CountIncompleteChildren(_ context.Context, parentID primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, task := range s.tasks {
		if task.ParentID != nil && *task.ParentID == parentID && task.Status != models.StatusDone {
			count++
		}
	}
	return count, nil
}

func (s *fakeTaskStore) Insert(_ context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = primitive.NewObjectID()
	s.tasks[task.ID] = cloneTask(*task)
	return task, nil
}

func (s *fakeTaskStore) Update(_ context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdate {
		return nil, fmt.Errorf("%w: update matched no task row", models.ErrInternal)
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return nil, fmt.Errorf("%w: update matched no task row", models.ErrInternal)
	}
	s.tasks[task.ID] = cloneTask(*task)
	return task, nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	return nil
}

func (s *fakeTaskStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

type fakeUserDirectory struct {
	users map[string]models.User
}

func newFakeUserDirectory(users ...models.User) *fakeUserDirectory {
	d := &fakeUserDirectory{users: make(map[string]models.User)}
	for _, u := range users {
		d.users[u.Username] = u
	}
	return d
}

func (d *fakeUserDirectory) GetByUsername(_ context.Context, username string) (*models.User, error) {
	user, ok := d.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, username)
	}
	return &user, nil
}

func (d *fakeUserDirectory) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	for _, user := range d.users {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
}

type fakeCategoryResolver struct {
	known map[string]map[string]bool // ownerID hex -> name -> exists
}

func newFakeCategoryResolver() *fakeCategoryResolver {
	return &fakeCategoryResolver{known: make(map[string]map[string]bool)}
}

func (r *fakeCategoryResolver) add(ownerID primitive.ObjectID, names ...string) {
	key := ownerID.Hex()
	if r.known[key] == nil {
		r.known[key] = make(map[string]bool)
	}
	for _, name := range names {
		r.known[key][name] = true
	}
}

func (r *fakeCategoryResolver) GetByName(_ context.Context, ownerID primitive.ObjectID, name string) (*models.Category, error) {
	if !r.known[ownerID.Hex()][name] {
		return nil, fmt.Errorf("%w: category %s", models.ErrNotFound, name)
	}
	return &models.Category{ID: primitive.NewObjectID(), OwnerID: ownerID, Name: name}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) NotifyTaskEvent(eventType string, _ *models.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}
