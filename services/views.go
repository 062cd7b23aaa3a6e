package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"realtime-chat/models"
	"realtime-chat/repository"
)

// expandConcurrency bounds parallel lookups when expanding references.
const expandConcurrency = 8

type PrivateChatView struct {
	With        models.UserSummary `json:"with"`
	LastMessage *models.Message    `json:"lastMessage,omitempty"`
	UnreadCount int                `json:"unreadCount"`
}

type Profile struct {
	*models.User
	JoinedRooms  []models.Room        `json:"joinedRooms"`
	Contacts     []models.UserSummary `json:"contacts"`
	PrivateChats []PrivateChatView    `json:"privateChats"`
}

type ContactList struct {
	Contacts     []models.UserSummary `json:"contacts"`
	PrivateChats []PrivateChatView    `json:"privateChats"`
}

// RoomView is a room with its creator and last message expanded.
type RoomView struct {
	models.Room
	Creator     models.UserSummary  `json:"creator"`
	LastMessage *models.MessageView `json:"lastMessage,omitempty"`
}

type History struct {
	Messages   []models.MessageView `json:"messages"`
	Pagination models.Page          `json:"pagination"`
}

type Conversation struct {
	Chat     models.PrivateChat   `json:"chat"`
	Messages []models.MessageView `json:"messages"`
}

// summaries loads users by id and indexes them.
func summaries(ctx context.Context, users repository.UserRepository, ids []string) (map[string]models.UserSummary, error) {
	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.UserSummary, len(found))
	for i := range found {
		out[found[i].ID] = found[i].Summary()
	}
	return out, nil
}

// summaryOf falls back to a bare id when the referenced user is gone.
func summaryOf(index map[string]models.UserSummary, id string) models.UserSummary {
	if s, ok := index[id]; ok {
		return s
	}
	return models.UserSummary{ID: id}
}

// messageViews expands the sender and, for private messages, the receiver.
func messageViews(ctx context.Context, users repository.UserRepository, msgs []models.Message) ([]models.MessageView, error) {
	ids := make([]string, 0, len(msgs)*2)
	for _, m := range msgs {
		ids = models.AddID(ids, m.Sender)
		if m.Receiver != "" {
			ids = models.AddID(ids, m.Receiver)
		}
	}
	index, err := summaries(ctx, users, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.MessageView, 0, len(msgs))
	for i := range msgs {
		var receiver *models.UserSummary
		if msgs[i].Receiver != "" {
			r := summaryOf(index, msgs[i].Receiver)
			receiver = &r
		}
		out = append(out, msgs[i].View(summaryOf(index, msgs[i].Sender), receiver))
	}
	return out, nil
}

// privateChatViews resolves each summary's peer and last message concurrently.
func privateChatViews(ctx context.Context, store *repository.Store, chats []models.PrivateChat) ([]PrivateChatView, error) {
	peers := make([]string, 0, len(chats))
	for _, pc := range chats {
		peers = append(peers, pc.With)
	}
	index, err := summaries(ctx, store.Users, peers)
	if err != nil {
		return nil, err
	}

	out := make([]PrivateChatView, len(chats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(expandConcurrency)
	for i, pc := range chats {
		out[i] = PrivateChatView{With: summaryOf(index, pc.With), UnreadCount: pc.UnreadCount}
		if pc.LastMessage == "" {
			continue
		}
		i, pc := i, pc // per-iteration copies (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			m, err := store.Messages.FindByID(gctx, pc.LastMessage)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i].LastMessage = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
