package repositories

import (
	"context"
	"errors"
	"messenger/domain"
	customerrors "messenger/errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// UserRepository is the Badger-backed user directory.
// Names are unique, case-insensitively, through a "username:" index.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(id domain.UserID) []byte {
	return []byte("user:" + id.String())
}

func usernameKey(name string) []byte {
	return []byte("username:" + strings.ToLower(name))
}

// CreateUser persists a user under a fresh id. It returns ErrUserAlreadyExists
// when the name is taken.
func (u *UserRepository) CreateUser(ctx context.Context, name string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:        domain.UserID(uuid.New().String()),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	data, err := encodeUser(user)
	if err != nil {
		return domain.User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := usernameKey(user.Name)
		if _, err := txn.Get(key); err == nil {
			return customerrors.ErrUserAlreadyExists
		}
		if err := txn.Set(key, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) Exists(ctx context.Context, userID domain.UserID) (bool, error) {
	_, found, err := u.get(ctx, userID)
	return found, err
}

func (u *UserRepository) DisplayName(ctx context.Context, userID domain.UserID) (string, bool, error) {
	user, found, err := u.get(ctx, userID)
	return user.Name, found, err
}

// ListUsers returns every user ordered by name.
func (u *UserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := decodeUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return users, nil
}

func (u *UserRepository) get(ctx context.Context, userID domain.UserID) (domain.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, false, err
	}
	if userID == "" {
		return domain.User{}, false, nil
	}
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			user, err = decodeUser(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}
