package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/op-booking-app/internal/middleware"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	users "github.com/AdamBeresnev/op-booking-app/internal/user"
	"github.com/AdamBeresnev/op-booking-app/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/markbates/goth"
	"github.com/rotisserie/eris"
)

type UserService struct {
	db    *sqlx.DB
	store *store.UserStore
	clock clockwork.Clock
}

func NewUserService(db *sqlx.DB, store *store.UserStore, clock clockwork.Clock) *UserService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UserService{db: db, store: store, clock: clock}
}

func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != displayName(gothUser) {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			user.Username = displayName(gothUser)
			if err := s.store.UpdateUserNameAndAvatar(ctx, user); err != nil {
				log.Warn("failed to refresh user profile", "user_id", user.ID, "err", err)
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   displayName(gothUser),
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
			CreatedAt:  s.clock.Now().UTC(),
		}
		if err := s.store.CreateUser(ctx, newUser); err != nil {
			return nil, eris.Wrap(err, "failed to create user")
		}
		log.Info("user signed up", "user_id", newUser.ID, "provider", gothUser.Provider)
		return newUser, nil
	}

	return nil, eris.Wrap(err, "failed to look up user")
}

// EnsureGuestUser returns the shared guest account, creating it on first use.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	user, err := s.store.GetUser(ctx, middleware.GuestUserID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:        uuid.MustParse(middleware.GuestUserID),
			Email:     "guest@op-booking.app",
			Username:  "Guest User",
			CreatedAt: s.clock.Now().UTC(),
		}
		if err := s.store.CreateUser(ctx, guestUser); err != nil {
			return nil, eris.Wrap(err, "failed to create guest user")
		}
		return guestUser, nil
	}
	return nil, eris.Wrap(err, "failed to look up guest user")
}

func displayName(u goth.User) string {
	switch {
	case u.NickName != "":
		return u.NickName
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}
