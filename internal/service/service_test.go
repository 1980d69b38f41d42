package service

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-booking-app/internal/allocation"
	"github.com/AdamBeresnev/op-booking-app/internal/db"
	"github.com/AdamBeresnev/op-booking-app/internal/metrics"
	"github.com/AdamBeresnev/op-booking-app/internal/middleware"
	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/roomlock"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	ownerID    = "owner-1"
	strangerID = "stranger-2"
)

// setupTestDB creates a throwaway SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to open test DB")
	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

type recordingFeed struct {
	mu        sync.Mutex
	snapshots []RoomData
}

func (f *recordingFeed) Publish(roomID uuid.UUID, snapshot any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch s := snapshot.(type) {
	case *RoomData:
		f.snapshots = append(f.snapshots, *s)
	case RoomData:
		f.snapshots = append(f.snapshots, s)
	}
}

func (f *recordingFeed) last() RoomData {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return RoomData{}
	}
	return f.snapshots[len(f.snapshots)-1]
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

type testEnv struct {
	db      *sqlx.DB
	store   *store.RoomStore
	clock   *clockwork.FakeClock
	feed    *recordingFeed
	metrics *metrics.Service

	rooms   *RoomService
	teams   *TeamService
	matches *MatchService
}

func newTestEnv(t *testing.T, codes io.Reader) *testEnv {
	t.Helper()

	database := setupTestDB(t)
	env := &testEnv{
		db:      database,
		store:   store.NewRoomStore(database),
		clock:   clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)),
		feed:    &recordingFeed{},
		metrics: metrics.NewService(prometheus.NewRegistry()),
	}
	deps := Deps{
		Locks:   roomlock.New(),
		Clock:   env.clock,
		Feed:    env.feed,
		Metrics: env.metrics,
		Engine:  allocation.NewEngine(rand.NewPCG(1, 2)),
		Codes:   codes,
	}
	env.rooms = NewRoomService(database, env.store, deps)
	env.teams = NewTeamService(database, env.store, deps)
	env.matches = NewMatchService(database, env.store, deps)
	return env
}

func asUser(id string) context.Context {
	return middleware.WithUserID(context.Background(), id)
}

func (e *testEnv) createRoom(t *testing.T, settings room.Settings) *room.Room {
	t.Helper()
	r, err := e.rooms.CreateRoom(asUser(ownerID), CreateRoomInput{
		PlayDate:    e.clock.Now().Add(48 * time.Hour),
		Description: "Sunday league",
		Settings:    settings,
	})
	require.NoError(t, err)
	return r
}

// joinN adds n players named P1..Pn a minute apart, all added by the owner.
func (e *testEnv) joinN(t *testing.T, roomID uuid.UUID, n int) []*room.Player {
	t.Helper()
	players := make([]*room.Player, 0, n)
	for i := 1; i <= n; i++ {
		e.clock.Advance(time.Minute)
		p, err := e.rooms.JoinRoom(asUser(ownerID), roomID, JoinInput{Name: fmt.Sprintf("P%d", i)})
		require.NoError(t, err)
		players = append(players, p)
	}
	return players
}

func (e *testEnv) players(t *testing.T, roomID uuid.UUID) map[string]room.Player {
	t.Helper()
	list, err := e.store.GetPlayers(context.Background(), roomID)
	require.NoError(t, err)
	byName := make(map[string]room.Player, len(list))
	for _, p := range list {
		byName[p.Name] = p
	}
	return byName
}

func activeNames(t *testing.T, e *testEnv, roomID uuid.UUID) []string {
	t.Helper()
	list, err := e.store.GetPlayers(context.Background(), roomID)
	require.NoError(t, err)
	var names []string
	for _, p := range list {
		if p.IsActive() {
			names = append(names, p.Name)
		}
	}
	return names
}

func requireRosterInvariant(t *testing.T, e *testEnv, roomID uuid.UUID) {
	t.Helper()
	r, err := e.store.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	list, err := e.store.GetPlayers(context.Background(), roomID)
	require.NoError(t, err)
	for i, p := range list {
		require.Equal(t, i+1, p.Position, "positions are dense")
		require.Equal(t, p.Position <= r.EffectiveCapacity(), p.IsActive(), "status of %s", p.Name)
	}
}

// failUpdatesOf makes every later UPDATE touching column of players abort,
// so a mutation fails after some of its writes already ran.
func failUpdatesOf(t *testing.T, e *testEnv, column string) {
	t.Helper()
	trigger := "fail_" + column
	e.db.MustExec(fmt.Sprintf(
		"CREATE TRIGGER %s BEFORE UPDATE OF %s ON players BEGIN SELECT RAISE(ABORT, 'write refused'); END",
		trigger, column))
	t.Cleanup(func() { e.db.Exec("DROP TRIGGER IF EXISTS " + trigger) })
}

func restoreUpdatesOf(t *testing.T, e *testEnv, column string) {
	t.Helper()
	e.db.MustExec("DROP TRIGGER fail_" + column)
}
