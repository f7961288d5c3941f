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

type CategoryRepository struct {
	collection *mongo.Collection
}

func NewCategoryRepository(collection *mongo.Collection) *CategoryRepository {
	return &CategoryRepository{collection: collection}
}

func (r *CategoryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create category index: %v", err)
	}
	return nil
}

func (r *CategoryRepository) GetByName(ctx context.Context, ownerID primitive.ObjectID, name string) (*models.Category, error) {
	var category models.Category
	err := r.collection.FindOne(ctx, bson.M{"ownerId": ownerID, "name": name}).Decode(&category)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: category %s", models.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to fetch category: %v", err)
	}
	return &category, nil
}

func (r *CategoryRepository) GetByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Category, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %v", err)
	}
	defer cursor.Close(ctx)

	var categories []models.Category
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %v", err)
	}
	return categories, nil
}

func (r *CategoryRepository) Insert(ctx context.Context, category *models.Category) (*models.Category, error) {
	result, err := r.collection.InsertOne(ctx, category)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: category name must be unique for the user", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create category: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: insert returned no identity", models.ErrInternal)
	}
	category.ID = insertedID
	return category, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, ownerID primitive.ObjectID, name string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"ownerId": ownerID, "name": name})
	if err != nil {
		return fmt.Errorf("failed to delete category: %v", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: category %s", models.ErrNotFound, name)
	}
	return nil
}
