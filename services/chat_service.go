package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	customerrors "messenger/errors"
	"slices"
	"strings"

	"github.com/samber/lo"
)

type IChatService interface {
	Conversation(ctx context.Context, reader, peer domain.UserID) ([]domain.Message, error)
	Chats(ctx context.Context, userID domain.UserID) ([]domain.ChatSummary, error)
	Contacts(ctx context.Context, userID domain.UserID) ([]domain.Contact, error)
	Online(ctx context.Context) ([]domain.Contact, error)
}

// ChatService builds the read views of the messenger on top of the store,
// the user directory and the live registry.
type ChatService struct {
	log               *slog.Logger
	store             contract.IStore
	users             contract.IUserRepository
	registry          contract.IRegistry
	router            contract.IRouter
	conversationLimit int
}

func NewChatService(log *slog.Logger, store contract.IStore, users contract.IUserRepository,
	registry contract.IRegistry, router contract.IRouter, conversationLimit int) *ChatService {
	return &ChatService{
		log:               log,
		store:             store,
		users:             users,
		registry:          registry,
		router:            router,
		conversationLimit: conversationLimit,
	}
}

// Conversation returns the latest messages between reader and peer, oldest
// first. Fetching the history marks what peer sent to reader as read.
func (s *ChatService) Conversation(ctx context.Context, reader, peer domain.UserID) ([]domain.Message, error) {
	exists, err := s.users.Exists(ctx, peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	if !exists {
		return nil, customerrors.ErrUserNotFound
	}

	messages, err := s.store.FindConversation(ctx, reader, peer, s.conversationLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}

	unread := lo.FilterMap(messages, func(m domain.Message, _ int) (domain.MessageID, bool) {
		return m.ID, isUnreadFor(m, reader) && m.SenderID == peer
	})
	if len(unread) == 0 {
		return messages, nil
	}
	count, err := s.router.MarkRead(ctx, unread, reader)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Conversation marked as read", "user_id", reader, "peer_id", peer, "count", count)

	for i := range messages {
		if messages[i].SenderID == peer && messages[i].ReceiverID == reader {
			messages[i].IsRead = true
		}
	}
	return messages, nil
}

// Chats returns one summary per peer, most recent conversation first.
func (s *ChatService) Chats(ctx context.Context, userID domain.UserID) ([]domain.ChatSummary, error) {
	messages, err := s.store.FindByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}

	summaries := make(map[domain.UserID]*domain.ChatSummary)
	for _, m := range messages {
		peer := m.Peer(userID)
		summary, ok := summaries[peer]
		if !ok {
			summary = &domain.ChatSummary{PeerID: peer}
			summaries[peer] = summary
		}
		if !m.CreatedAt.Before(summary.LastMessageTime) {
			summary.LastMessage = m.Preview()
			summary.LastMessageTime = m.CreatedAt
		}
		if isUnreadFor(m, userID) {
			summary.UnreadCount++
		}
	}

	chats := make([]domain.ChatSummary, 0, len(summaries))
	for peer, summary := range summaries {
		name, found, err := s.users.DisplayName(ctx, peer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
		}
		if !found {
			s.log.Debug("Chat with an unknown user skipped", "user_id", userID, "peer_id", peer)
			continue
		}
		summary.PeerName = name
		summary.Online = s.isOnline(peer)
		chats = append(chats, *summary)
	}
	slices.SortFunc(chats, func(a, b domain.ChatSummary) int {
		if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		return cmp.Compare(a.PeerID, b.PeerID)
	})
	return chats, nil
}

// Contacts lists every other user, online users first, then by name.
func (s *ChatService) Contacts(ctx context.Context, userID domain.UserID) ([]domain.Contact, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	contacts := lo.FilterMap(users, func(u domain.User, _ int) (domain.Contact, bool) {
		return domain.Contact{ID: u.ID, Name: u.Name, Online: s.isOnline(u.ID)}, u.ID != userID
	})
	sortContacts(contacts)
	return contacts, nil
}

// Online lists the users holding a live connection right now.
func (s *ChatService) Online(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	for _, userID := range s.registry.AllOnline() {
		name, found, err := s.users.DisplayName(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
		}
		if found {
			contacts = append(contacts, domain.Contact{ID: userID, Name: name, Online: true})
		}
	}
	sortContacts(contacts)
	return contacts, nil
}

func (s *ChatService) isOnline(userID domain.UserID) bool {
	_, ok := s.registry.Lookup(userID)
	return ok
}

func isUnreadFor(m domain.Message, userID domain.UserID) bool {
	return m.ReceiverID == userID && !m.IsRead
}

func sortContacts(contacts []domain.Contact) {
	slices.SortFunc(contacts, func(a, b domain.Contact) int {
		if a.Online != b.Online {
			if a.Online {
				return -1
			}
			return 1
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
