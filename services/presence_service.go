package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"realtime-chat/models"
	"realtime-chat/repository"
)

type PresenceService struct {
	users  repository.UserRepository
	notify Notifier
	log    *zap.Logger
}

func NewPresenceService(users repository.UserRepository, notify Notifier, log *zap.Logger) *PresenceService {
	return &PresenceService{users: users, notify: orNop(notify), log: log}
}

// SetStatus persists status and lastSeen, then tells every contact.
func (s *PresenceService) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if !status.Valid() {
		return invalid("invalid status")
	}
	if err := s.users.SetStatus(ctx, userID, status, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user not found")
		}
		return internal("set status", err)
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return internal("find user", err)
	}
	evt := models.UserStatusEvent{UserID: userID, Status: status}
	for _, contact := range u.Contacts {
		if err := s.notify.Emit(ctx, models.UserChannel(contact), models.EventUserStatus, evt); err != nil {
			s.log.Warn("status broadcast failed",
				zap.String("user_id", userID), zap.String("contact", contact), zap.Error(err))
		}
	}
	s.log.Debug("status changed", zap.String("user_id", userID), zap.String("status", string(status)))
	return nil
}
