package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"messenger/domain"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageRepository stores messages in BadgerDB.
//
// Keyspace:
//
//	msg:{id}                          -> encoded message
//	conv:{low}:{high}:{ts}:{id}       -> empty, one per message, low/high are the sorted participant ids
//	part:{user}:{ts}:{id}             -> empty, one per participant
//
// {ts} is the creation time in nanoseconds, zero padded to 19 digits so that
// lexicographical order is chronological order. The id breaks ties between
// messages created in the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

func messageKey(id domain.MessageID) []byte {
	return []byte("msg:" + id.String())
}

func conversationPrefix(a, b domain.UserID) string {
	low, high := a, b
	if high < low {
		low, high = high, low
	}
	return fmt.Sprintf("conv:%s:%s:", low, high)
}

func participantPrefix(userID domain.UserID) string {
	return fmt.Sprintf("part:%s:", userID)
}

func indexKeys(m domain.Message) [][]byte {
	suffix := fmt.Sprintf("%019d:%s", m.CreatedAt.UnixNano(), m.ID)
	keys := [][]byte{
		[]byte(conversationPrefix(m.SenderID, m.ReceiverID) + suffix),
		[]byte(participantPrefix(m.SenderID) + suffix),
	}
	if m.ReceiverID != m.SenderID {
		keys = append(keys, []byte(participantPrefix(m.ReceiverID)+suffix))
	}
	return keys
}

// InsertMessage assigns a new id and writes the message with its indexes in one transaction.
func (r *MessageRepository) InsertMessage(ctx context.Context, message domain.Message) (domain.MessageID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	message.ID = domain.MessageID(uuid.NewString())
	bytes, err := encodeMessage(message)
	if err != nil {
		return "", err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		for _, key := range indexKeys(message) {
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

// SetRead marks as read the unread messages addressed to readerID.
// Unknown ids and messages addressed to someone else are skipped.
func (r *MessageRepository) SetRead(ctx context.Context, ids []domain.MessageID, readerID domain.UserID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		count = 0
		for _, id := range lo.Uniq(ids) {
			message, err := getMessage(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if message.ReceiverID != readerID || message.IsRead {
				continue
			}
			message.IsRead = true
			bytes, err := encodeMessage(message)
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(id), bytes); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteMessage removes the message and its indexes when requesterID is a participant.
func (r *MessageRepository) DeleteMessage(ctx context.Context, id domain.MessageID, requesterID domain.UserID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	deleted := false
	err := r.db.Update(func(txn *badger.Txn) error {
		message, err := getMessage(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !message.HasParticipant(requesterID) {
			return nil
		}
		for _, key := range append(indexKeys(message), messageKey(id)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// FindConversation walks the conversation index backwards from the newest
// message, keeps at most limit entries, and returns them oldest first.
func (r *MessageRepository) FindConversation(ctx context.Context, a, b domain.UserID, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.scan(conversationPrefix(a, b), limit)
}

// FindByParticipant returns every message userID sent or received, oldest first.
func (r *MessageRepository) FindByParticipant(ctx context.Context, userID domain.UserID) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.scan(participantPrefix(userID), 0)
}

func (r *MessageRepository) scan(prefixStr string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the last possible key of the prefix, then walk back.
		seekKey := append(slices.Clone(prefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			key := string(it.Item().Key())
			id := domain.MessageID(key[len(prefixStr)+20:])
			message, err := getMessage(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				r.log.Warn("Dangling message index", "key", key)
				continue
			}
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func getMessage(txn *badger.Txn, id domain.MessageID) (domain.Message, error) {
	item, err := txn.Get(messageKey(id))
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = decodeMessage(val)
		return err
	})
	return message, err
}

// Name and Ping let the health worker watch the database.
func (r *MessageRepository) Name() string { return "badger" }

func (r *MessageRepository) Ping(_ context.Context) error {
	if r.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return nil
}
