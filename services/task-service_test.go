package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tasknest/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	alice = models.User{ID: primitive.NewObjectID(), Username: "alice", Role: "member"}
	bob   = models.User{ID: primitive.NewObjectID(), Username: "bob", Role: "member"}
	admin = models.User{ID: primitive.NewObjectID(), Username: "root", Role: "admin"}
)

func strPtr(s string) *string {
	return &s
}

func newTestEngine() (*fakeTaskStore, *fakeCategoryResolver, *fakeNotifier, *TaskService) {
	store := newFakeTaskStore()
	categories := newFakeCategoryResolver()
	notifier := &fakeNotifier{}
	users := newFakeUserDirectory(alice, bob, admin)
	svc := NewTaskService(store, users, categories, notifier)
	return store, categories, notifier, svc
}

func mustCreateTask(t *testing.T, svc *TaskService, username string, req TaskRequest) *models.Task {
	t.Helper()

	task, err := svc.CreateTask(context.Background(), username, req)
	require.NoError(t, err)
	return task
}

func TestCreateTaskDefaultsToTodo(t *testing.T) {
	_, _, notifier, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})

	assert.Equal(t, models.StatusTodo, task.Status)
	assert.Equal(t, alice.ID, task.OwnerID)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	assert.Equal(t, []string{"TASK_CREATED"}, notifier.events)
}

func TestCreateTaskTitleUniquePerOwner(t *testing.T) {
	_, _, _, svc := newTestEngine()

	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})

	_, err := svc.CreateTask(context.Background(), "alice", TaskRequest{Title: strPtr("Buy milk")})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Contains(t, err.Error(), "title must be unique for the user")

	// Isti naslov kod drugog korisnika je dozvoljen
	_, err = svc.CreateTask(context.Background(), "bob", TaskRequest{Title: strPtr("Buy milk")})
	assert.NoError(t, err)
}

func TestCreateTaskUnknownUser(t *testing.T) {
	_, _, _, svc := newTestEngine()

	_, err := svc.CreateTask(context.Background(), "nobody", TaskRequest{Title: strPtr("Buy milk")})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateTaskValidation(t *testing.T) {
	_, _, _, svc := newTestEngine()

	_, err := svc.CreateTask(context.Background(), "alice", TaskRequest{})
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "title must not be empty")

	_, err = svc.CreateTask(context.Background(), "alice", TaskRequest{Title: strPtr("   ")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.CreateTask(context.Background(), "alice", TaskRequest{Title: strPtr("Buy milk"), Status: strPtr("FINISHED")})
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "TODO, IN_PROGRESS, DONE")

	// Više neispravnih polja vraća objedinjenu poruku
	_, err = svc.CreateTask(context.Background(), "alice", TaskRequest{Status: strPtr("FINISHED"), CategoryNames: []string{"bad/name"}})
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "title must not be empty")
	assert.Contains(t, err.Error(), "invalid status")
	assert.Contains(t, err.Error(), "invalid characters")
}

func TestHasDuplicateCategories(t *testing.T) {
	assert.True(t, HasDuplicateCategories([]string{"Work", "Work"}))
	assert.False(t, HasDuplicateCategories([]string{"Work", "Urgent"}))
	assert.False(t, HasDuplicateCategories([]string{}))
	assert.False(t, HasDuplicateCategories([]string{"Work"}))
	// Poklapanje je case-sensitive
	assert.False(t, HasDuplicateCategories([]string{"Work", "work"}))
}

func TestCreateTaskDuplicateCategories(t *testing.T) {
	store, categories, _, svc := newTestEngine()
	categories.add(alice.ID, "Work")

	_, err := svc.CreateTask(context.Background(), "alice", TaskRequest{
		Title:         strPtr("Buy milk"),
		CategoryNames: []string{"Work", "Work"},
	})
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Contains(t, err.Error(), "duplicate categories")
	assert.Equal(t, 0, store.count())
}

func TestCreateTaskUnknownCategory(t *testing.T) {
	store, categories, _, svc := newTestEngine()
	categories.add(alice.ID, "Work")

	_, err := svc.CreateTask(context.Background(), "alice", TaskRequest{
		Title:         strPtr("Buy milk"),
		CategoryNames: []string{"Work", "Urgent"},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, store.count())
}

func TestCreateTaskWithParent(t *testing.T) {
	_, _, _, svc := newTestEngine()

	parent := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Chores")})
	child := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk"), ParentID: strPtr(parent.ID.Hex())})

	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestCreateTaskParentOwnedByOtherUser(t *testing.T) {
	_, _, _, svc := newTestEngine()

	parent := mustCreateTask(t, svc, "bob", TaskRequest{Title: strPtr("Chores")})

	_, err := svc.CreateTask(context.Background(), "alice", TaskRequest{
		Title:    strPtr("Buy milk"),
		ParentID: strPtr(parent.ID.Hex()),
	})
	assert.ErrorIs(t, err, models.ErrAccessDenied)
}

func TestCreateTaskParentNotFound(t *testing.T) {
	_, _, _, svc := newTestEngine()

	_, err := svc.CreateTask(context.Background(), "alice", TaskRequest{
		Title:    strPtr("Buy milk"),
		ParentID: strPtr(primitive.NewObjectID().Hex()),
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.CreateTask(context.Background(), "alice", TaskRequest{
		Title:    strPtr("Buy milk"),
		ParentID: strPtr("not-an-id"),
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateTaskPartialUpdate(t *testing.T) {
	_, categories, _, svc := newTestEngine()
	categories.add(alice.ID, "Work")

	task := mustCreateTask(t, svc, "alice", TaskRequest{
		Title:         strPtr("Buy milk"),
		Description:   strPtr("two liters"),
		Status:        strPtr("IN_PROGRESS"),
		CategoryNames: []string{"Work"},
	})

	updated, err := svc.UpdateTask(context.Background(), task.ID, "alice", TaskRequest{
		Description: strPtr("three liters"),
	})
	require.NoError(t, err)

	assert.Equal(t, "three liters", updated.Description)
	assert.Equal(t, task.Title, updated.Title)
	assert.Equal(t, task.Status, updated.Status)
	assert.Equal(t, task.Categories, updated.Categories)
	assert.Nil(t, updated.ParentID)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt) || updated.UpdatedAt.Equal(task.UpdatedAt))
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)
}

func TestUpdateTaskTitleUniquenessExcludesSelf(t *testing.T) {
	_, _, _, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})
	other := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Walk the dog")})

	// Zadržavanje sopstvenog naslova nije konflikt
	_, err := svc.UpdateTask(context.Background(), task.ID, "alice", TaskRequest{Title: strPtr("Buy milk")})
	assert.NoError(t, err)

	_, err = svc.UpdateTask(context.Background(), other.ID, "alice", TaskRequest{Title: strPtr("Buy milk")})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUpdateTaskActingUserMustBeOwner(t *testing.T) {
	_, _, _, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})

	_, err := svc.UpdateTask(context.Background(), task.ID, "bob", TaskRequest{Description: strPtr("x")})
	assert.ErrorIs(t, err, models.ErrAccessDenied)

	// Administrator sme da menja tuđe taskove
	_, err = svc.UpdateTask(context.Background(), task.ID, "root", TaskRequest{Description: strPtr("x")})
	assert.NoError(t, err)
}

func TestUpdateTaskStatusChangeBlockedByIncompleteChild(t *testing.T) {
	_, _, _, svc := newTestEngine()

	parent := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Chores")})
	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk"), ParentID: strPtr(parent.ID.Hex())})

	_, err := svc.UpdateTask(context.Background(), parent.ID, "alice", TaskRequest{Status: strPtr("DONE")})
	assert.ErrorIs(t, err, models.ErrConflict)

	// Izmena bez promene statusa prolazi i sa nezavršenim podzadatkom
	_, err = svc.UpdateTask(context.Background(), parent.ID, "alice", TaskRequest{Description: strPtr("weekly chores")})
	assert.NoError(t, err)

	// Slanje istog statusa nije promena, pa se ne blokira
	_, err = svc.UpdateTask(context.Background(), parent.ID, "alice", TaskRequest{Status: strPtr("TODO")})
	assert.NoError(t, err)
}

func TestUpdateTaskReparenting(t *testing.T) {
	_, _, _, svc := newTestEngine()

	a := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("A")})
	b := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("B"), ParentID: strPtr(a.ID.Hex())})
	c := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("C"), ParentID: strPtr(b.ID.Hex())})

	// Task ne sme da postane dete samog sebe
	_, err := svc.UpdateTask(context.Background(), a.ID, "alice", TaskRequest{ParentID: strPtr(a.ID.Hex())})
	assert.ErrorIs(t, err, models.ErrConflict)

	// Ni dete svog potomka, ni preko više nivoa
	_, err = svc.UpdateTask(context.Background(), a.ID, "alice", TaskRequest{ParentID: strPtr(b.ID.Hex())})
	assert.ErrorIs(t, err, models.ErrConflict)
	_, err = svc.UpdateTask(context.Background(), a.ID, "alice", TaskRequest{ParentID: strPtr(c.ID.Hex())})
	assert.ErrorIs(t, err, models.ErrConflict)

	// Prazan parentId otkačinje task
	updated, err := svc.UpdateTask(context.Background(), b.ID, "alice", TaskRequest{ParentID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
}

func TestChangeTaskStatusCompletionGating(t *testing.T) {
	_, _, _, svc := newTestEngine()

	a := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("A")})
	b := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("B"), ParentID: strPtr(a.ID.Hex())})

	_, err := svc.ChangeTaskStatus(context.Background(), a.ID, "alice", "DONE")
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Contains(t, err.Error(), a.ID.Hex())

	_, err = svc.ChangeTaskStatus(context.Background(), b.ID, "alice", "DONE")
	require.NoError(t, err)

	updated, err := svc.ChangeTaskStatus(context.Background(), a.ID, "alice", "DONE")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
}

func TestChangeTaskStatusGatesEveryTransition(t *testing.T) {
	// Provera dece se radi za svaku promenu statusa, ne samo za prelazak
	// u DONE: i TODO -> IN_PROGRESS je blokiran dok postoji nezavršeno dete.
	_, _, _, svc := newTestEngine()

	a := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("A")})
	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("B"), ParentID: strPtr(a.ID.Hex())})

	_, err := svc.ChangeTaskStatus(context.Background(), a.ID, "alice", "IN_PROGRESS")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestChangeTaskStatusInvalidLiteral(t *testing.T) {
	_, _, _, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("A")})

	_, err := svc.ChangeTaskStatus(context.Background(), task.ID, "alice", "done")
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "TODO, IN_PROGRESS, DONE")
}

func TestDeleteTaskCascade(t *testing.T) {
	store, _, _, svc := newTestEngine()

	parent := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Chores")})
	for _, title := range []string{"Buy milk", "Walk the dog", "Do laundry"} {
		mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr(title), ParentID: strPtr(parent.ID.Hex()), Status: strPtr("DONE")})
	}
	require.Equal(t, 4, store.count())

	err := svc.DeleteTask(context.Background(), parent.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, store.count())
}

func TestDeleteTaskWithoutChildren(t *testing.T) {
	store, _, _, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})
	other := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Walk the dog")})

	err := svc.DeleteTask(context.Background(), task.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, store.count())

	_, err = svc.GetTaskByID(context.Background(), other.ID, false)
	assert.NoError(t, err)
}

func TestDeleteTaskBlockedByIncompleteChild(t *testing.T) {
	store, _, _, svc := newTestEngine()

	parent := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Chores")})
	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk"), ParentID: strPtr(parent.ID.Hex())})

	err := svc.DeleteTask(context.Background(), parent.ID, "alice")
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, 2, store.count())
}

func TestDeleteTaskNotFound(t *testing.T) {
	_, _, _, svc := newTestEngine()

	err := svc.DeleteTask(context.Background(), primitive.NewObjectID(), "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteTaskActingUserMustBeOwner(t *testing.T) {
	_, _, _, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})

	err := svc.DeleteTask(context.Background(), task.ID, "bob")
	assert.ErrorIs(t, err, models.ErrAccessDenied)
}

func TestUpdateTaskStoreFailureIsInternal(t *testing.T) {
	store, _, _, svc := newTestEngine()

	task := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk")})
	store.failUpdate = true

	_, err := svc.UpdateTask(context.Background(), task.ID, "alice", TaskRequest{Description: strPtr("x")})
	assert.ErrorIs(t, err, models.ErrInternal)
}

func TestGetTaskByIDNestedView(t *testing.T) {
	_, _, _, svc := newTestEngine()

	parent := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Chores")})
	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("Buy milk"), ParentID: strPtr(parent.ID.Hex())})

	flat, err := svc.GetTaskByID(context.Background(), parent.ID, false)
	require.NoError(t, err)
	assert.Nil(t, flat.SubTasks)

	// Polje subTasks se u JSON-u pojavljuje samo u ugnježdenom prikazu
	payload, err := json.Marshal(flat)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "subTasks")

	nested, err := svc.GetTaskByID(context.Background(), parent.ID, true)
	require.NoError(t, err)
	require.Len(t, nested.SubTasks, 1)
	assert.Equal(t, "Buy milk", nested.SubTasks[0].Title)

	payload, err = json.Marshal(nested)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "subTasks")
}

func TestValidateChildTaskCompletionDirectChildrenOnly(t *testing.T) {
	_, _, _, svc := newTestEngine()

	a := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("A")})
	b := mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("B"), ParentID: strPtr(a.ID.Hex()), Status: strPtr("DONE")})
	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("C"), ParentID: strPtr(b.ID.Hex())})

	// Unuk nije završen, ali se gleda samo jedan nivo hijerarhije
	err := svc.ValidateChildTaskCompletion(context.Background(), a.ID)
	assert.NoError(t, err)

	err = svc.ValidateChildTaskCompletion(context.Background(), b.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestGetTasksForUser(t *testing.T) {
	_, _, _, svc := newTestEngine()

	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("A")})
	mustCreateTask(t, svc, "alice", TaskRequest{Title: strPtr("B")})
	mustCreateTask(t, svc, "bob", TaskRequest{Title: strPtr("C")})

	tasks, err := svc.GetTasksForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	_, err = svc.GetTasksForUser(context.Background(), "nobody")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
