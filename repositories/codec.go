package repositories

import (
	"fmt"
	"messenger/domain"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Values are stored as protobuf-encoded structpb.Struct documents.
// Timestamps are kept as RFC3339Nano strings: structpb numbers are float64
// and would lose nanosecond precision.

func encodeMessage(m domain.Message) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":            m.ID.String(),
		"senderId":      m.SenderID.String(),
		"receiverId":    m.ReceiverID.String(),
		"content":       m.Content,
		"type":          string(m.Type),
		"fileUrl":       m.FileURL,
		"createdAt":     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"isRead":        m.IsRead,
		"correlationId": m.CorrelationID,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeMessage(b []byte) (domain.Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return domain.Message{}, err
	}
	f := s.GetFields()
	createdAt, err := time.Parse(time.RFC3339Nano, f["createdAt"].GetStringValue())
	if err != nil {
		return domain.Message{}, fmt.Errorf("invalid createdAt: %w", err)
	}
	return domain.Message{
		ID:            domain.MessageID(f["id"].GetStringValue()),
		SenderID:      domain.UserID(f["senderId"].GetStringValue()),
		ReceiverID:    domain.UserID(f["receiverId"].GetStringValue()),
		Content:       f["content"].GetStringValue(),
		Type:          domain.MessageType(f["type"].GetStringValue()),
		FileURL:       f["fileUrl"].GetStringValue(),
		CreatedAt:     createdAt.UTC(),
		IsRead:        f["isRead"].GetBoolValue(),
		CorrelationID: f["correlationId"].GetStringValue(),
	}, nil
}

func encodeUser(u domain.User) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":        u.ID.String(),
		"name":      u.Name,
		"createdAt": u.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeUser(b []byte) (domain.User, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return domain.User{}, err
	}
	f := s.GetFields()
	createdAt, err := time.Parse(time.RFC3339Nano, f["createdAt"].GetStringValue())
	if err != nil {
		return domain.User{}, fmt.Errorf("invalid createdAt: %w", err)
	}
	return domain.User{
		ID:        domain.UserID(f["id"].GetStringValue()),
		Name:      f["name"].GetStringValue(),
		CreatedAt: createdAt.UTC(),
	}, nil
}
