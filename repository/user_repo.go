package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"realtime-chat/models"
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Search(ctx context.Context, query, excludeID string, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	SetStatus(ctx context.Context, id string, status models.UserStatus, at time.Time) error
	AddContact(ctx context.Context, id, contactID string) error
	RemoveContact(ctx context.Context, id, contactID string) error
	// ResetUnread ensures a private chat summary with peer exists and zeroes its counter.
	ResetUnread(ctx context.Context, id, peer string) error
}

type InMemoryUserRepo struct {
	db *memDB
}

func (r *InMemoryUserRepo) Create(ctx context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[u.ID]; ok {
		return ErrDuplicate
	}
	if r.takenLocked(u.Username, u.Email, "") {
		return ErrDuplicate
	}
	r.db.users[u.ID] = cloneUser(u)
	return nil
}

// takenLocked reports whether username or email is held by a user other than self.
func (r *InMemoryUserRepo) takenLocked(username, email, self string) bool {
	for id, existing := range r.db.users {
		if id == self {
			continue
		}
		if username != "" && existing.Username == username {
			return true
		}
		if email != "" && strings.EqualFold(existing.Email, email) {
			return true
		}
	}
	return false
}

func (r *InMemoryUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *InMemoryUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

// FindByIDs returns the users that exist, in the order of ids.
func (r *InMemoryUserRepo) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (r *InMemoryUserRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]models.User, error) {
	q := strings.ToLower(query)
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.User{}
	for id, u := range r.db.users {
		if id == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryUserRepo) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	var username, email string
	if upd.Username != nil {
		username = *upd.Username
	}
	if upd.Email != nil {
		email = *upd.Email
	}
	if r.takenLocked(username, email, id) {
		return nil, ErrDuplicate
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Password != nil {
		u.Password = *upd.Password
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (r *InMemoryUserRepo) SetStatus(ctx context.Context, id string, status models.UserStatus, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.LastSeen = at
	return nil
}

func (r *InMemoryUserRepo) AddContact(ctx context.Context, id, contactID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := r.db.users[contactID]; !ok {
		return ErrNotFound
	}
	u.Contacts = models.AddID(u.Contacts, contactID)
	return nil
}

func (r *InMemoryUserRepo) RemoveContact(ctx context.Context, id, contactID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Contacts = models.RemoveID(u.Contacts, contactID)
	return nil
}

func (r *InMemoryUserRepo) ResetUnread(ctx context.Context, id, peer string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return ErrNotFound
	}
	u.EnsurePrivateChat(peer).UnreadCount = 0
	return nil
}
