package service

import (
	"context"
	"io"
	"time"

	"github.com/AdamBeresnev/op-booking-app/internal/allocation"
	"github.com/AdamBeresnev/op-booking-app/internal/feed"
	"github.com/AdamBeresnev/op-booking-app/internal/metrics"
	"github.com/AdamBeresnev/op-booking-app/internal/middleware"
	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/roomlock"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
)

var validate = validator.New()

// Deps are shared by the room, team and match services. All services of one
// process must share the same Locks.
type Deps struct {
	Locks   *roomlock.Locker
	Clock   clockwork.Clock
	Feed    feed.Publisher
	Metrics metrics.Metrics
	Engine  *allocation.Engine

	// Codes is the randomness for join codes, crypto/rand when nil.
	Codes io.Reader
}

func (d Deps) withDefaults() Deps {
	if d.Locks == nil {
		d.Locks = roomlock.New()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Feed == nil {
		d.Feed = feed.Discard{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Engine == nil {
		d.Engine = allocation.NewEngine(nil)
	}
	return d
}

// RoomData is everything a client needs to render a room. It is also the
// snapshot pushed to live subscribers.
type RoomData struct {
	Room    *room.Room    `json:"room"`
	Players []room.Player `json:"players"`
	Teams   []room.Team   `json:"teams"`
	Matches []room.Match  `json:"matches"`
	Deleted bool          `json:"deleted,omitempty"`
}

// coordinator runs every room mutation the same way: take the room lock, do
// the work in one transaction, commit, then publish the new state.
type coordinator struct {
	db    *sqlx.DB
	store *store.RoomStore
	deps  Deps
}

func newCoordinator(db *sqlx.DB, store *store.RoomStore, deps Deps) coordinator {
	return coordinator{db: db, store: store, deps: deps.withDefaults()}
}

type mutation func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error

func (c *coordinator) mutate(ctx context.Context, op string, roomID uuid.UUID, fn mutation) error {
	start := c.deps.Clock.Now()
	unlock := c.deps.Locks.Lock(roomID)
	defer unlock()
	defer func() {
		c.deps.Metrics.ObserveMutation(op, c.deps.Clock.Since(start).Seconds())
	}()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "failed to begin %s", op)
	}
	defer tx.Rollback()

	r, err := c.store.GetRoomTx(ctx, tx, roomID)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "failed to commit %s", op)
	}

	c.publish(ctx, roomID)
	return nil
}

func (c *coordinator) publish(ctx context.Context, roomID uuid.UUID) {
	data, err := c.roomData(ctx, roomID)
	if err != nil {
		log.Error("failed to load room snapshot", "room_id", roomID, "err", err)
		return
	}
	c.deps.Feed.Publish(roomID, data)
}

func (c *coordinator) roomData(ctx context.Context, roomID uuid.UUID) (*RoomData, error) {
	r, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	players, err := c.store.GetPlayers(ctx, roomID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get players")
	}

	teams, err := c.store.GetTeams(ctx, roomID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get teams")
	}
	withMembers(teams, players)

	matches, err := c.store.GetMatches(ctx, roomID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get matches")
	}

	return &RoomData{
		Room:    r,
		Players: emptyIfNil(players),
		Teams:   emptyIfNil(teams),
		Matches: emptyIfNil(matches),
	}, nil
}

func (c *coordinator) now() time.Time {
	return c.deps.Clock.Now().UTC()
}

// withMembers fills each team's member list from the players' assignment.
func withMembers(teams []room.Team, players []room.Player) {
	rosters := allocation.Rosters(teams, players)
	for i := range teams {
		teams[i].Members = rosters[teams[i].ID]
	}
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func callerID(ctx context.Context) string {
	id, _ := middleware.GetUserIDFromContext(ctx)
	return id
}

func requireOwner(ctx context.Context, r *room.Room) error {
	if !r.IsOwner(callerID(ctx)) {
		return eris.Wrapf(room.ErrForbidden, "only the owner can change room %s", r.ID)
	}
	return nil
}

func validationError(err error) error {
	return eris.Wrap(room.ErrInvalidInput, err.Error())
}
