// Package messaging owns the delivery-state lifecycle of persisted messages.
//
// A message's status advances in two distinct ways which must not be
// conflated. Fetch-time reconciliation (Conversation, Contacts) is the source
// of truth: it batch-updates persisted statuses as the receiver's client
// demonstrates it has seen them. Live read acknowledgements travel over the
// signaling relay as a low-latency UI hint and never touch persisted status;
// see the chat server's mark-read handling.
package messaging

import (
	"database/sql"
	"errors"
	"log"

	"github.com/sbecker/confab/internal/database"
	"github.com/sbecker/confab/internal/types"
)

// PresenceReader is the slice of the presence registry the engine needs:
// a point lookup for the creation-time delivery decision and a snapshot for
// contact-list responses.
type PresenceReader interface {
	Online(userId int) bool
	Snapshot() []int
}

type Service struct {
	log      *log.Logger
	db       database.ConfabRepository
	presence PresenceReader
}

func NewService(logger *log.Logger, db database.ConfabRepository, presence PresenceReader) *Service {
	return &Service{
		log:      logger,
		db:       db,
		presence: presence,
	}
}

// CreateMessage persists a new message. The initial status is delivered when
// the receiver is currently bound in the presence registry, sent otherwise.
// A receiver that connects between the lookup and the write leaves the
// message as sent; the delivered pass on their next contact fetch resolves
// it, so the race never causes a regression.
func (s *Service) CreateMessage(senderId, receiverId int, body string, msgType types.MessageType) (types.Message, error) {
	switch {
	case senderId == 0:
		return types.Message{}, &ValidationError{Field: "from"}
	case receiverId == 0:
		return types.Message{}, &ValidationError{Field: "to"}
	case body == "":
		return types.Message{}, &ValidationError{Field: "message"}
	}

	if msgType == "" {
		msgType = types.TypeText
	}

	status := types.StatusSent
	if s.presence.Online(receiverId) {
		status = types.StatusDelivered
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		SenderId:   senderId,
		ReceiverId: receiverId,
		Body:       body,
		Type:       string(msgType),
		Status:     string(status),
	})
	if err != nil {
		return types.Message{}, err
	}

	return toTypesMessage(msg), nil
}

// Conversation returns the full message history between from and to, oldest
// first. Fetching marks every unread message addressed to the fetcher as
// read: the returned messages carry the new status and the persistence layer
// is updated with exactly the transitioned ids in one batch.
func (s *Service) Conversation(fromId, toId int) ([]types.Message, error) {
	dbMsgs, err := s.db.GetConversation(fromId, toId)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, len(dbMsgs))
	var readIds []int
	for i, m := range dbMsgs {
		msg := toTypesMessage(m)
		if msg.ReceiverId == fromId && msg.Status != types.StatusRead {
			msg.Status = types.StatusRead
			readIds = append(readIds, msg.Id)
		}
		messages[i] = msg
	}

	if len(readIds) > 0 {
		if err := s.db.UpdateMessageStatuses(readIds, string(types.StatusRead)); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

// Contacts returns one entry per user the requesting user has exchanged
// messages with, each carrying the most recent message between the pair and
// the count of unread messages from that counterpart, along with the current
// presence snapshot. Loading the contact list proves the receiver's client
// exists, so every sent message addressed to the requester transitions to
// delivered before the response is built.
func (s *Service) Contacts(userId int) ([]types.Contact, []int, error) {
	if _, err := s.db.GetAccountById(userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, &NotFoundError{UserId: userId}
		}
		return nil, nil, err
	}

	dbMsgs, err := s.db.GetMessagesForUser(userId)
	if err != nil {
		return nil, nil, err
	}

	accounts, err := s.db.ListAccounts()
	if err != nil {
		return nil, nil, err
	}

	users := make(map[int]types.User, len(accounts))
	for _, a := range accounts {
		users[a.Id] = types.User{
			Id:           a.Id,
			Username:     a.Username,
			EmailAddress: a.EmailAddress,
		}
	}

	var deliveredIds []int
	contacts := make([]types.Contact, 0)
	index := make(map[int]int)

	// dbMsgs is ordered newest first with ties broken by id, so the first
	// message seen for a counterpart is the pair's most recent one.
	for _, m := range dbMsgs {
		msg := toTypesMessage(m)

		if msg.ReceiverId == userId && msg.Status == types.StatusSent {
			msg.Status = types.StatusDelivered
			deliveredIds = append(deliveredIds, msg.Id)
		}

		counterpartId := msg.SenderId
		if msg.SenderId == userId {
			counterpartId = msg.ReceiverId
		}

		unread := 0
		if msg.ReceiverId == userId && msg.Status != types.StatusRead {
			unread = 1
		}

		if i, ok := index[counterpartId]; ok {
			contacts[i].UnreadCount += unread
			continue
		}

		user, ok := users[counterpartId]
		if !ok {
			user = types.User{Id: counterpartId}
		}

		index[counterpartId] = len(contacts)
		contacts = append(contacts, types.Contact{
			User:        user,
			LastMessage: msg,
			UnreadCount: unread,
		})
	}

	if len(deliveredIds) > 0 {
		if err := s.db.UpdateMessageStatuses(deliveredIds, string(types.StatusDelivered)); err != nil {
			return nil, nil, err
		}
	}

	return contacts, s.presence.Snapshot(), nil
}

func toTypesMessage(m database.Message) types.Message {
	return types.Message{
		Id:         m.Id,
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Body:       m.Body,
		Type:       types.MessageType(m.Type),
		Status:     types.MessageStatus(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}
