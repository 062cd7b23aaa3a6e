package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"realtime-chat/models"
	"realtime-chat/repository"
	"realtime-chat/utils"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt input limit
	userSearchLimit   = 20
)

// AuthService covers registration, login, token checks and profile management.
type AuthService struct {
	store    *repository.Store
	secret   string
	tokenTTL time.Duration
	log      *zap.Logger
}

func NewAuthService(store *repository.Store, secret string, tokenTTL time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{store: store, secret: secret, tokenTTL: tokenTTL, log: log}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validateUsername(username); err != nil {
		return nil, "", err
	}
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", internal("hash password", err)
	}
	u := models.NewUser(username, email, string(hashed))
	if err := s.store.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", conflict("username or email already exists")
		}
		return nil, "", internal("create user", err)
	}

	token, err := s.CreateToken(u.ID, u.Username)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return u, token, nil
}

// Login never reveals which of email or password was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", invalid("email and password are required")
	}

	u, err := s.store.Users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", unauthorized("invalid credentials", nil)
		}
		return nil, "", internal("find user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, "", unauthorized("invalid credentials", nil)
	}

	token, err := s.CreateToken(u.ID, u.Username)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *AuthService) CreateToken(userID, username string) (string, error) {
	token, err := utils.GenerateJWT(s.secret, userID, username, s.tokenTTL)
	if err != nil {
		return "", internal("sign token", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to the user it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, _, err := utils.ParseJWT(s.secret, token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, unauthorized("token has expired", err)
		}
		return nil, unauthorized("invalid token", err)
	}
	u, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unauthorized("user no longer exists", err)
		}
		return nil, internal("find user", err)
	}
	return u, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		rooms    []models.Room
		contacts []models.UserSummary
		chats    []PrivateChatView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rooms, err = s.store.Rooms.ListByMember(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		contacts, err = s.contactSummaries(gctx, u.Contacts)
		return err
	})
	g.Go(func() error {
		var err error
		chats, err = privateChatViews(gctx, s.store, u.PrivateChats)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal("load profile", err)
	}
	return &Profile{User: u, JoinedRooms: rooms, Contacts: contacts, PrivateChats: chats}, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, invalid("no profile fields to update")
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		upd.Username = &name
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		upd.Email = &email
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, internal("hash password", err)
		}
		h := string(hashed)
		upd.Password = &h
	}
	if upd.Avatar != nil {
		avatar := strings.TrimSpace(*upd.Avatar)
		if avatar == "" {
			avatar = models.DefaultAvatar
		}
		upd.Avatar = &avatar
	}

	u, err := s.store.Users.UpdateProfile(ctx, userID, upd)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("user not found")
	case errors.Is(err, repository.ErrDuplicate):
		return nil, conflict("username or email already exists")
	case err != nil:
		return nil, internal("update profile", err)
	}
	return u, nil
}

func (s *AuthService) Contacts(ctx context.Context, userID string) (*ContactList, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.contactSummaries(ctx, u.Contacts)
	if err != nil {
		return nil, internal("load contacts", err)
	}
	chats, err := privateChatViews(ctx, s.store, u.PrivateChats)
	if err != nil {
		return nil, internal("load private chats", err)
	}
	return &ContactList{Contacts: contacts, PrivateChats: chats}, nil
}

func (s *AuthService) AddContact(ctx context.Context, userID, contactID string) error {
	if contactID == userID {
		return invalid("cannot add yourself as a contact")
	}
	if !models.ValidID(contactID) {
		return invalid("invalid user id")
	}
	err := s.store.Users.AddContact(ctx, userID, contactID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("user not found")
	}
	if err != nil {
		return internal("add contact", err)
	}
	return nil
}

func (s *AuthService) RemoveContact(ctx context.Context, userID, contactID string) error {
	err := s.store.Users.RemoveContact(ctx, userID, contactID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("user not found")
	}
	if err != nil {
		return internal("remove contact", err)
	}
	return nil
}

// SearchUsers matches q against usernames and emails, excluding the caller.
func (s *AuthService) SearchUsers(ctx context.Context, userID, q string) ([]models.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.UserSummary{}, nil
	}
	users, err := s.store.Users.Search(ctx, q, userID, userSearchLimit)
	if err != nil {
		return nil, internal("search users", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

func (s *AuthService) findUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.Users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user not found")
	}
	if err != nil {
		return nil, internal("find user", err)
	}
	return u, nil
}

func (s *AuthService) contactSummaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	users, err := s.store.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return invalid("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email is invalid")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return invalid("password must be between %d and %d characters", minPasswordLength, maxPasswordLength)
	}
	return nil
}
