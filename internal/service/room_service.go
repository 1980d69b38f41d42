package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/roster"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/AdamBeresnev/op-booking-app/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

const maxCodeAttempts = 5

type RoomService struct {
	coordinator
}

func NewRoomService(db *sqlx.DB, store *store.RoomStore, deps Deps) *RoomService {
	return &RoomService{coordinator: newCoordinator(db, store, deps)}
}

type CreateRoomInput struct {
	PlayDate    time.Time     `json:"playDate"`
	Description string        `json:"description" validate:"max=500"`
	LocationURL string        `json:"locationUrl" validate:"omitempty,url"`
	PlayMode    room.PlayMode `json:"playMode"`
	Settings    room.Settings `json:"settings"`
}

type JoinInput struct {
	Name string `json:"name" validate:"required,max=50"`
	// AddSelf links the entry to the caller's account; otherwise a guest is added.
	AddSelf bool `json:"addSelf"`
}

// SettingsPatch changes only the fields that are set.
type SettingsPatch struct {
	PlayDate         *time.Time     `json:"playDate"`
	Description      *string        `json:"description"`
	LocationURL      *string        `json:"locationUrl"`
	PlayMode         *room.PlayMode `json:"playMode"`
	AcceptedCapacity *int           `json:"acceptedCapacity"`
	NumTeams         *int           `json:"numTeams"`
	PlayersPerTeam   *int           `json:"playersPerTeam"`
}

func (p SettingsPatch) touchesCapacity() bool {
	return p.AcceptedCapacity != nil || p.NumTeams != nil || p.PlayersPerTeam != nil
}

func (s *RoomService) CreateRoom(ctx context.Context, input CreateRoomInput) (*room.Room, error) {
	ownerID := callerID(ctx)
	if ownerID == "" {
		return nil, eris.Wrap(room.ErrForbidden, "sign in to create a room")
	}

	input.Description = strings.TrimSpace(input.Description)
	input.LocationURL = strings.TrimSpace(input.LocationURL)
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	if err := input.Settings.Validate(); err != nil {
		return nil, err
	}
	if input.PlayMode == "" {
		input.PlayMode = room.League
	}
	if !input.PlayMode.Valid() {
		return nil, eris.Wrapf(room.ErrInvalidInput, "unknown play mode %q", input.PlayMode)
	}

	r := &room.Room{
		ID:               uuid.New(),
		PlayDate:         input.PlayDate.UTC(),
		Description:      input.Description,
		LocationURL:      utils.StringOrNil(input.LocationURL),
		AcceptedCapacity: input.Settings.AcceptedCapacity,
		NumTeams:         input.Settings.NumTeams,
		PlayersPerTeam:   input.Settings.PlayersPerTeam,
		PlayMode:         input.PlayMode,
		Status:           room.StatusOpen,
		OwnerID:          ownerID,
		CreatedAt:        s.now(),
	}

	// The unique index on rooms.code settles collisions, a clash just draws again.
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := room.GenerateCode(s.deps.Codes)
		if err != nil {
			return nil, err
		}
		r.Code = code

		err = s.insertRoom(ctx, r)
		if err == nil {
			s.deps.Metrics.IncRoomsCreated()
			log.Info("room created", "room_id", r.ID, "code", r.Code, "owner_id", ownerID)
			return r, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		log.Warn("join code collision, retrying", "code", code, "attempt", attempt)
	}
	return nil, eris.Errorf("could not find a free join code after %d attempts", maxCodeAttempts)
}

func (s *RoomService) insertRoom(ctx context.Context, r *room.Room) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.store.CreateRoom(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *RoomService) GetRoom(ctx context.Context, id uuid.UUID) (*room.Room, error) {
	return s.store.GetRoom(ctx, id)
}

func (s *RoomService) GetRoomByCode(ctx context.Context, code string) (*room.Room, error) {
	return s.store.GetRoomByCode(ctx, code)
}

func (s *RoomService) ListRoomsForOwner(ctx context.Context) ([]room.Room, error) {
	ownerID := callerID(ctx)
	if ownerID == "" {
		return nil, eris.Wrap(room.ErrForbidden, "user ID not found in the context")
	}
	rooms, err := s.store.GetRoomsByOwner(ctx, ownerID)
	return emptyIfNil(rooms), err
}

func (s *RoomService) GetRoomData(ctx context.Context, id uuid.UUID) (*RoomData, error) {
	return s.roomData(ctx, id)
}

// JoinRoom appends a player to the room. The newcomer gets an active slot only
// if one is free.
func (s *RoomService) JoinRoom(ctx context.Context, roomID uuid.UUID, input JoinInput) (*room.Player, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	var linkedID *string
	if input.AddSelf {
		uid := callerID(ctx)
		if uid == "" {
			return nil, eris.Wrap(room.ErrForbidden, "anonymous callers cannot join as themselves")
		}
		linkedID = &uid
	}

	var player *room.Player
	err := s.mutate(ctx, "join", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		players, err := s.store.GetPlayersTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get players")
		}

		if linkedID != nil {
			for _, p := range players {
				if p.UserID != nil && *p.UserID == *linkedID {
					return eris.Wrapf(room.ErrPrecondition, "user %s already joined", *linkedID)
				}
			}
		}

		position, status := roster.Arrival(players, r.EffectiveCapacity())
		player = &room.Player{
			ID:       uuid.New(),
			RoomID:   r.ID,
			Name:     input.Name,
			JoinedAt: utils.Ptr(s.now()),
			AddedBy:  utils.StringOrNil(callerID(ctx)),
			UserID:   linkedID,
			Status:   status,
			Position: position,
		}
		if err := s.store.CreatePlayer(ctx, tx, player); err != nil {
			return eris.Wrap(err, "failed to create player")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncJoins(string(player.Status))
	log.Info("player joined", "room_id", roomID, "player_id", player.ID, "position", player.Position, "status", player.Status)
	return player, nil
}

// RemovePlayer drops a player and promotes waiting players into the freed
// slot. Removing a player that is already gone does nothing.
func (s *RoomService) RemovePlayer(ctx context.Context, roomID, playerID uuid.UUID) error {
	var changes roster.Changes
	removed := false
	err := s.mutate(ctx, "remove", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		players, err := s.store.GetPlayersTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get players")
		}

		idx := -1
		for i := range players {
			if players[i].ID == playerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		if !room.CanManagePlayer(r, &players[idx], callerID(ctx)) {
			return eris.Wrapf(room.ErrForbidden, "cannot remove player %s", playerID)
		}

		if err := s.store.DeletePlayer(ctx, tx, playerID); err != nil {
			return eris.Wrap(err, "failed to delete player")
		}
		removed = true

		remaining := append(players[:idx:idx], players[idx+1:]...)
		changes, err = s.recalculate(ctx, tx, remaining, r.EffectiveCapacity())
		return err
	})
	if err != nil || !removed {
		return err
	}

	s.deps.Metrics.IncRemovals()
	s.deps.Metrics.AddPromotions(len(changes.Promoted))
	log.Info("player removed", "room_id", roomID, "player_id", playerID, "promoted", len(changes.Promoted))
	return nil
}

// recalculate rewrites positions and statuses at capacity and stores only the
// players whose slot changed.
func (s *RoomService) recalculate(ctx context.Context, tx *sqlx.Tx, players []room.Player, capacity int) (roster.Changes, error) {
	after := roster.Recalculate(players, capacity)

	before := make(map[uuid.UUID]room.Player, len(players))
	for _, p := range players {
		before[p.ID] = p
	}
	var dirty []room.Player
	for _, p := range after {
		old := before[p.ID]
		if old.Position != p.Position || old.Status != p.Status {
			dirty = append(dirty, p)
		}
	}

	if err := s.store.UpdatePlayerSlots(ctx, tx, dirty); err != nil {
		return roster.Changes{}, eris.Wrap(err, "failed to update player slots")
	}
	return roster.Diff(players, after), nil
}

func (s *RoomService) UpdateSettings(ctx context.Context, roomID uuid.UUID, patch SettingsPatch) (*room.Room, error) {
	var (
		updated *room.Room
		changes roster.Changes
	)
	err := s.mutate(ctx, "settings", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}

		next := *r
		if patch.PlayDate != nil {
			next.PlayDate = patch.PlayDate.UTC()
		}
		if patch.Description != nil {
			next.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.LocationURL != nil {
			next.LocationURL = utils.StringOrNil(*patch.LocationURL)
		}
		if patch.PlayMode != nil {
			if !patch.PlayMode.Valid() {
				return eris.Wrapf(room.ErrInvalidInput, "unknown play mode %q", *patch.PlayMode)
			}
			next.PlayMode = *patch.PlayMode
		}
		if patch.AcceptedCapacity != nil {
			next.AcceptedCapacity = *patch.AcceptedCapacity
		}
		if patch.NumTeams != nil {
			next.NumTeams = *patch.NumTeams
		}
		if patch.PlayersPerTeam != nil {
			next.PlayersPerTeam = *patch.PlayersPerTeam
		}

		if err := next.Settings().Validate(); err != nil {
			return err
		}
		if err := validate.Var(next.Description, "max=500"); err != nil {
			return validationError(err)
		}
		if next.LocationURL != nil {
			if err := validate.Var(*next.LocationURL, "url"); err != nil {
				return validationError(err)
			}
		}

		if err := s.store.UpdateRoom(ctx, tx, &next); err != nil {
			return eris.Wrap(err, "failed to update room")
		}
		updated = &next

		if !patch.touchesCapacity() {
			return nil
		}
		players, err := s.store.GetPlayersTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get players")
		}
		changes, err = s.recalculate(ctx, tx, players, next.EffectiveCapacity())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.AddPromotions(len(changes.Promoted))
	s.deps.Metrics.AddDemotions(len(changes.Demoted))
	if !changes.Empty() {
		log.Info("roster recalculated", "room_id", roomID, "capacity", updated.EffectiveCapacity(),
			"promoted", len(changes.Promoted), "demoted", len(changes.Demoted))
	}
	return updated, nil
}

// SetStatus lets the owner move the room to any status. Moving backwards is
// allowed but logged.
func (s *RoomService) SetStatus(ctx context.Context, roomID uuid.UUID, status room.Status) error {
	if !status.Valid() {
		return eris.Wrapf(room.ErrInvalidInput, "unknown status %q", status)
	}
	return s.mutate(ctx, "status", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		if !r.Status.IsForward(status) {
			log.Warn("room status moved backwards", "room_id", r.ID, "from", r.Status, "to", status)
		}
		return s.store.UpdateRoomStatusTx(ctx, tx, r.ID, status)
	})
}

func (s *RoomService) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	unlock := s.deps.Locks.Lock(roomID)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r, err := s.store.GetRoomTx(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if err := requireOwner(ctx, r); err != nil {
		return err
	}
	if err := s.store.DeleteRoom(ctx, tx, roomID); err != nil {
		return eris.Wrap(err, "failed to delete room")
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.deps.Feed.Publish(roomID, RoomData{Deleted: true})
	log.Info("room deleted", "room_id", roomID)
	return nil
}
