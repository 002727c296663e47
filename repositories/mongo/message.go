package mongo

import (
	"context"
	"messenger/domain"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageDocument struct {
	ID            string    `bson:"_id"`
	SenderID      string    `bson:"sender_id"`
	ReceiverID    string    `bson:"receiver_id"`
	Content       string    `bson:"content"`
	Type          string    `bson:"type"`
	FileURL       string    `bson:"file_url,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	IsRead        bool      `bson:"is_read"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
}

func (d *messageDocument) toDomain() domain.Message {
	return domain.Message{
		ID:            domain.MessageID(d.ID),
		SenderID:      domain.UserID(d.SenderID),
		ReceiverID:    domain.UserID(d.ReceiverID),
		Content:       d.Content,
		Type:          domain.MessageType(d.Type),
		FileURL:       d.FileURL,
		CreatedAt:     d.CreatedAt.UTC(),
		IsRead:        d.IsRead,
		CorrelationID: d.CorrelationID,
	}
}

func fromDomain(m domain.Message) messageDocument {
	return messageDocument{
		ID:            m.ID.String(),
		SenderID:      m.SenderID.String(),
		ReceiverID:    m.ReceiverID.String(),
		Content:       m.Content,
		Type:          string(m.Type),
		FileURL:       m.FileURL,
		CreatedAt:     m.CreatedAt,
		IsRead:        m.IsRead,
		CorrelationID: m.CorrelationID,
	}
}

// MessageRepository implements contract.IStore for MongoDB.
// Mongo stores milliseconds, so creation times lose their sub-millisecond part.
type MessageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	collection := db.Collection("messages")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})

	return &MessageRepository{collection: collection}
}

func (r *MessageRepository) InsertMessage(ctx context.Context, message domain.Message) (domain.MessageID, error) {
	message.ID = domain.MessageID(uuid.NewString())
	if _, err := r.collection.InsertOne(ctx, fromDomain(message)); err != nil {
		return "", err
	}
	return message.ID, nil
}

func (r *MessageRepository) SetRead(ctx context.Context, ids []domain.MessageID, readerID domain.UserID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.collection.UpdateMany(ctx,
		bson.M{
			"_id":         bson.M{"$in": lo.Map(ids, func(id domain.MessageID, _ int) string { return id.String() })},
			"receiver_id": readerID.String(),
			"is_read":     false,
		},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return int(result.ModifiedCount), nil
}

func (r *MessageRepository) DeleteMessage(ctx context.Context, id domain.MessageID, requesterID domain.UserID) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{
		"_id": id.String(),
		"$or": bson.A{
			bson.M{"sender_id": requesterID.String()},
			bson.M{"receiver_id": requesterID.String()},
		},
	})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

// FindConversation retrieves the last limit messages between a and b, oldest first.
func (r *MessageRepository) FindConversation(ctx context.Context, a, b domain.UserID, limit int) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	messages, err := r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"sender_id": a.String(), "receiver_id": b.String()},
		bson.M{"sender_id": b.String(), "receiver_id": a.String()},
	}}, opts)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (r *MessageRepository) FindByParticipant(ctx context.Context, userID domain.UserID) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"sender_id": userID.String()},
		bson.M{"receiver_id": userID.String()},
	}}, opts)
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Message, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, len(docs))
	for i, doc := range docs {
		messages[i] = doc.toDomain()
	}
	return messages, nil
}
