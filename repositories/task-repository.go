package repositories

import (
	"context"
	"fmt"

	"tasknest/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TaskRepository struct {
	collection *mongo.Collection
}

func NewTaskRepository(collection *mongo.Collection) *TaskRepository {
	return &TaskRepository{collection: collection}
}

// EnsureIndexes kreira jedinstveni indeks nad (ownerId, title).
// Indeks je garancija jedinstvenosti naslova na nivou baze; provera u
// servisu je samo pred-validacija.
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "title", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create task index: %v", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, id.Hex())
		}
		return nil, fmt.Errorf("failed to fetch task: %v", err)
	}
	return &task, nil
}

// ExistsByOwnerAndTitle proverava da li vlasnik već ima task sa istim naslovom,
// isključujući prosleđeni ID prilikom izmene.
func (r *TaskRepository) ExistsByOwnerAndTitle(ctx context.Context, ownerID primitive.ObjectID, title string, excludeID *primitive.ObjectID) (bool, error) {
	filter := bson.M{"ownerId": ownerID, "title": title}
	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": *excludeID}
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check title uniqueness: %v", err)
	}
	return count > 0, nil
}

func (r *TaskRepository) GetByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Task, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

// GetChildren vraća direktne podzadatke, jedan nivo hijerarhije.
func (r *TaskRepository) GetChildren(ctx context.Context, parentID primitive.ObjectID) ([]models.Task, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"parentId": parentID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve child tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode child tasks: %v", err)
	}
	return tasks, nil
}

func (r *TaskRepository) CountIncompleteChildren(ctx context.Context, parentID primitive.ObjectID) (int64, error) {
	filter := bson.M{"parentId": parentID, "status": bson.M{"$ne": models.StatusDone}}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count incomplete child tasks: %v", err)
	}
	return count, nil
}

func (r *TaskRepository) Insert(ctx context.Context, task *models.Task) (*models.Task, error) {
	result, err := r.collection.InsertOne(ctx, task)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: title must be unique for the user", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create task: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: insert returned no identity", models.ErrInternal)
	}
	task.ID = insertedID
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID}, task)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: title must be unique for the user", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to update task: %v", err)
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: update matched no task row", models.ErrInternal)
	}
	return task, nil
}

// Delete briše task po ID-u; brisanje nepostojećeg taska nije greška,
// pa se prekinuto kaskadno brisanje sme bezbedno ponoviti.
func (r *TaskRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete task: %v", err)
	}
	return nil
}
