package mongo

import (
	"context"
	"errors"
	"messenger/domain"
	customerrors "messenger/errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	NameLower string    `bson:"name_lower"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *userDocument) toDomain() domain.User {
	return domain.User{
		ID:        domain.UserID(d.ID),
		Name:      d.Name,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// UserRepository implements contract.IUserRepository for MongoDB
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	collection := db.Collection("users")

	// Create unique index on the lowered name (idempotent operation)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name_lower", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &UserRepository{collection: collection}
}

func (r *UserRepository) CreateUser(ctx context.Context, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	doc := userDocument{
		ID:        uuid.NewString(),
		Name:      name,
		NameLower: strings.ToLower(name),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, customerrors.ErrUserAlreadyExists
		}
		return domain.User{}, err
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) Exists(ctx context.Context, userID domain.UserID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) DisplayName(ctx context.Context, userID domain.UserID) (string, bool, error) {
	var doc userDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Name, true, nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name_lower", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]domain.User, len(docs))
	for i, doc := range docs {
		users[i] = doc.toDomain()
	}
	return users, nil
}
