package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tenAcrossTwo = room.Settings{AcceptedCapacity: 10, NumTeams: 2, PlayersPerTeam: 5}

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t, nil)

	r := env.createRoom(t, tenAcrossTwo)
	assert.Len(t, r.Code, room.CodeLength)
	assert.Equal(t, room.StatusOpen, r.Status)
	assert.Equal(t, room.League, r.PlayMode)
	assert.Equal(t, ownerID, r.OwnerID)

	byCode, err := env.rooms.GetRoomByCode(context.Background(), " "+string(bytes.ToLower([]byte(r.Code))))
	require.NoError(t, err)
	assert.Equal(t, r.ID, byCode.ID)

	owned, err := env.rooms.ListRoomsForOwner(asUser(ownerID))
	require.NoError(t, err)
	require.Len(t, owned, 1)

	none, err := env.rooms.ListRoomsForOwner(asUser(strangerID))
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RoomsCreated))
}

func TestCreateRoom_Rejects(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.rooms.CreateRoom(context.Background(), CreateRoomInput{Settings: tenAcrossTwo})
	assert.True(t, errors.Is(err, room.ErrForbidden), "anonymous callers cannot own rooms")

	_, err = env.rooms.CreateRoom(asUser(ownerID), CreateRoomInput{
		Settings: room.Settings{AcceptedCapacity: 10, NumTeams: 1, PlayersPerTeam: 5},
	})
	assert.True(t, errors.Is(err, room.ErrInvalidInput))

	_, err = env.rooms.CreateRoom(asUser(ownerID), CreateRoomInput{Settings: tenAcrossTwo, PlayMode: "knockout"})
	assert.True(t, errors.Is(err, room.ErrInvalidInput))

	_, err = env.rooms.CreateRoom(asUser(ownerID), CreateRoomInput{Settings: tenAcrossTwo, LocationURL: "not a url"})
	assert.True(t, errors.Is(err, room.ErrInvalidInput))
}

func TestCreateRoom_RetriesOnCodeCollision(t *testing.T) {
	// every byte maps to one letter: 0 -> A, 1 -> B
	codes := append(bytes.Repeat([]byte{0}, 12), bytes.Repeat([]byte{1}, 6)...)
	env := newTestEnv(t, bytes.NewReader(codes))

	first := env.createRoom(t, tenAcrossTwo)
	second := env.createRoom(t, tenAcrossTwo)

	assert.Equal(t, "AAAAAA", first.Code)
	assert.Equal(t, "BBBBBB", second.Code)
}

func TestCreateRoom_GivesUpAfterCollisions(t *testing.T) {
	env := newTestEnv(t, bytes.NewReader(make([]byte, 6*(maxCodeAttempts+1))))
	env.createRoom(t, tenAcrossTwo)

	_, err := env.rooms.CreateRoom(asUser(ownerID), CreateRoomInput{Settings: tenAcrossTwo})
	require.Error(t, err)
	assert.False(t, errors.Is(err, room.ErrInvalidInput))
}

// Twelve players join a room with ten seats, then the third one leaves.
func TestJoinAndRemoveScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)
	players := env.joinN(t, r.ID, 12)

	for i, p := range players {
		assert.Equal(t, i+1, p.Position)
		if i < 10 {
			assert.Equal(t, room.Active, p.Status, p.Name)
		} else {
			assert.Equal(t, room.Waiting, p.Status, p.Name)
		}
	}
	assert.Equal(t, 10.0, testutil.ToFloat64(env.metrics.Joins.WithLabelValues("active")))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.Joins.WithLabelValues("waiting")))

	require.NoError(t, env.rooms.RemovePlayer(asUser(ownerID), r.ID, players[2].ID))

	assert.Equal(t, []string{"P1", "P2", "P4", "P5", "P6", "P7", "P8", "P9", "P10", "P11"}, activeNames(t, env, r.ID))
	byName := env.players(t, r.ID)
	assert.Equal(t, 10, byName["P11"].Position)
	assert.Equal(t, 11, byName["P12"].Position)
	assert.Equal(t, room.Waiting, byName["P12"].Status)
	requireRosterInvariant(t, env, r.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Promotions))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Removals))

	snap := env.feed.last()
	require.NotNil(t, snap.Room)
	assert.Len(t, snap.Players, 11)
	assert.Equal(t, 13, env.feed.count(), "one snapshot per committed change")
}

func TestJoinRoom_Rejects(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	_, err := env.rooms.JoinRoom(asUser(ownerID), r.ID, JoinInput{Name: "   "})
	assert.True(t, errors.Is(err, room.ErrInvalidInput))

	_, err = env.rooms.JoinRoom(asUser(ownerID), uuid.New(), JoinInput{Name: "Ghost"})
	assert.True(t, errors.Is(err, room.ErrNotFound))

	me, err := env.rooms.JoinRoom(asUser(strangerID), r.ID, JoinInput{Name: "Me", AddSelf: true})
	require.NoError(t, err)
	require.NotNil(t, me.UserID)
	assert.Equal(t, strangerID, *me.UserID)
	_, err = env.rooms.JoinRoom(asUser(strangerID), r.ID, JoinInput{Name: "Me again", AddSelf: true})
	assert.True(t, errors.Is(err, room.ErrPrecondition))
}

func TestJoinRoom_LinksOnlyTheCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	_, err := env.rooms.JoinRoom(context.Background(), r.ID, JoinInput{Name: "Walk-in", AddSelf: true})
	assert.True(t, errors.Is(err, room.ErrForbidden), "anonymous callers have no account to link")

	// a client-supplied account id in the payload is ignored
	var input JoinInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Impostor","userId":"owner-1"}`), &input))
	p, err := env.rooms.JoinRoom(asUser(strangerID), r.ID, input)
	require.NoError(t, err)
	assert.Nil(t, p.UserID)

	// so the owner's own entry is still free and nobody else can manage it
	mine, err := env.rooms.JoinRoom(asUser(ownerID), r.ID, JoinInput{Name: "Owner", AddSelf: true})
	require.NoError(t, err)
	assert.Equal(t, ownerID, *mine.UserID)
	err = env.rooms.RemovePlayer(asUser(strangerID), r.ID, mine.ID)
	assert.True(t, errors.Is(err, room.ErrForbidden))
}

func TestJoinRoom_Anonymous(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	p, err := env.rooms.JoinRoom(context.Background(), r.ID, JoinInput{Name: "Walk-in"})
	require.NoError(t, err)
	assert.Nil(t, p.AddedBy)
	assert.Nil(t, p.UserID)
	require.NotNil(t, p.JoinedAt)
	assert.True(t, env.clock.Now().Equal(*p.JoinedAt))
}

func TestRemovePlayer_Permissions(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	friend, err := env.rooms.JoinRoom(asUser(strangerID), r.ID, JoinInput{Name: "Friend"})
	require.NoError(t, err)
	self, err := env.rooms.JoinRoom(asUser("linked-3"), r.ID, JoinInput{Name: "Linked", AddSelf: true})
	require.NoError(t, err)
	// only the account link grants access, not the adder
	env.db.MustExec("UPDATE players SET added_by = ? WHERE id = ?", ownerID, self.ID)
	other := env.joinN(t, r.ID, 1)[0]

	err = env.rooms.RemovePlayer(asUser(strangerID), r.ID, other.ID)
	assert.True(t, errors.Is(err, room.ErrForbidden))

	err = env.rooms.RemovePlayer(context.Background(), r.ID, other.ID)
	assert.True(t, errors.Is(err, room.ErrForbidden), "anonymous callers manage nothing")

	require.NoError(t, env.rooms.RemovePlayer(asUser(strangerID), r.ID, friend.ID), "adder may remove")
	require.NoError(t, env.rooms.RemovePlayer(asUser("linked-3"), r.ID, self.ID), "linked user may remove")

	// already gone
	require.NoError(t, env.rooms.RemovePlayer(asUser(ownerID), r.ID, friend.ID))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.Removals))

	assert.Len(t, env.players(t, r.ID), 1)
	requireRosterInvariant(t, env, r.ID)
}

func TestRemovePlayer_RollsBackOnFailedRecalculation(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)
	players := env.joinN(t, r.ID, 12)
	before := env.players(t, r.ID)
	published := env.feed.count()

	failUpdatesOf(t, env, "position")
	err := env.rooms.RemovePlayer(asUser(ownerID), r.ID, players[0].ID)
	require.Error(t, err)

	after := env.players(t, r.ID)
	require.Len(t, after, 12, "the delete is rolled back with the failed shift")
	for name, p := range before {
		assert.Equal(t, p.Position, after[name].Position, name)
		assert.Equal(t, p.Status, after[name].Status, name)
	}
	assert.Equal(t, published, env.feed.count(), "nothing is published for a failed mutation")
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.Removals))

	restoreUpdatesOf(t, env, "position")
	require.NoError(t, env.rooms.RemovePlayer(asUser(ownerID), r.ID, players[0].ID))
	assert.Equal(t, room.Active, env.players(t, r.ID)["P11"].Status)
	requireRosterInvariant(t, env, r.ID)
}

func TestUpdateSettings_RecalculatesRoster(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)
	env.joinN(t, r.ID, 8)

	updated, err := env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{AcceptedCapacity: utils.Ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.EffectiveCapacity())
	assert.Equal(t, []string{"P1", "P2", "P3", "P4", "P5"}, activeNames(t, env, r.ID))
	requireRosterInvariant(t, env, r.ID)
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.Demotions))

	// seats, not accepted capacity, are now the limit: min(5, 2*2)
	_, err = env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{PlayersPerTeam: utils.Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3", "P4"}, activeNames(t, env, r.ID))

	_, err = env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{
		AcceptedCapacity: utils.Ptr(7),
		PlayersPerTeam:   utils.Ptr(4),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7"}, activeNames(t, env, r.ID))
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.Promotions))
	requireRosterInvariant(t, env, r.ID)
}

func TestUpdateSettings_Rejects(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)
	env.joinN(t, r.ID, 3)

	_, err := env.rooms.UpdateSettings(asUser(strangerID), r.ID, SettingsPatch{AcceptedCapacity: utils.Ptr(1)})
	assert.True(t, errors.Is(err, room.ErrForbidden))

	_, err = env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{NumTeams: utils.Ptr(1)})
	assert.True(t, errors.Is(err, room.ErrInvalidInput))

	_, err = env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{PlayMode: utils.Ptr(room.PlayMode("chaos"))})
	assert.True(t, errors.Is(err, room.ErrInvalidInput))

	fetched, err := env.rooms.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, tenAcrossTwo, fetched.Settings(), "rejected patches write nothing")
	assert.Equal(t, room.League, fetched.PlayMode)
}

func TestUpdateSettings_Details(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	when := time.Date(2025, 7, 4, 20, 0, 0, 0, time.UTC)
	updated, err := env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{
		PlayDate:    &when,
		Description: utils.Ptr("  Moved indoors  "),
		LocationURL: utils.Ptr("https://maps.example/hall"),
		PlayMode:    utils.Ptr(room.Rotational),
	})
	require.NoError(t, err)
	assert.Equal(t, "Moved indoors", updated.Description)
	assert.Equal(t, room.Rotational, updated.PlayMode)

	fetched, err := env.rooms.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, when.Equal(fetched.PlayDate))
	assert.Equal(t, "https://maps.example/hall", *fetched.LocationURL)

	_, err = env.rooms.UpdateSettings(asUser(ownerID), r.ID, SettingsPatch{LocationURL: utils.Ptr("")})
	require.NoError(t, err)
	fetched, err = env.rooms.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.LocationURL)
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	require.NoError(t, env.rooms.SetStatus(asUser(ownerID), r.ID, room.StatusCompleted))
	require.NoError(t, env.rooms.SetStatus(asUser(ownerID), r.ID, room.StatusOpen), "backward moves are allowed")

	assert.True(t, errors.Is(env.rooms.SetStatus(asUser(ownerID), r.ID, "paused"), room.ErrInvalidInput))
	assert.True(t, errors.Is(env.rooms.SetStatus(asUser(strangerID), r.ID, room.StatusCompleted), room.ErrForbidden))

	fetched, err := env.rooms.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusOpen, fetched.Status)
}

func TestDeleteRoom(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)
	env.joinN(t, r.ID, 4)
	_, err := env.teams.CreateTeams(asUser(ownerID), r.ID)
	require.NoError(t, err)

	assert.True(t, errors.Is(env.rooms.DeleteRoom(asUser(strangerID), r.ID), room.ErrForbidden))

	require.NoError(t, env.rooms.DeleteRoom(asUser(ownerID), r.ID))
	assert.True(t, env.feed.last().Deleted)

	_, err = env.rooms.GetRoomData(context.Background(), r.ID)
	assert.True(t, errors.Is(err, room.ErrNotFound))
	assert.Empty(t, env.players(t, r.ID))

	assert.True(t, errors.Is(env.rooms.DeleteRoom(asUser(ownerID), r.ID), room.ErrNotFound))
}

func TestGetRoomData(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	data, err := env.rooms.GetRoomData(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, data.Room.ID)
	assert.NotNil(t, data.Players)
	assert.NotNil(t, data.Teams)
	assert.NotNil(t, data.Matches)

	env.joinN(t, r.ID, 3)
	_, err = env.teams.CreateTeams(asUser(ownerID), r.ID)
	require.NoError(t, err)
	_, err = env.teams.AllocateUnassigned(asUser(ownerID), r.ID)
	require.NoError(t, err)

	data, err = env.rooms.GetRoomData(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, data.Teams, 2)
	members := len(data.Teams[0].Members) + len(data.Teams[1].Members)
	assert.Equal(t, 3, members, "members are derived from player assignments")
}

func TestConcurrentJoinsKeepPositionsDense(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, room.Settings{AcceptedCapacity: 12, NumTeams: 3, PlayersPerTeam: 4})

	const joiners = 30
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.rooms.JoinRoom(context.Background(), r.ID, JoinInput{Name: uuid.NewString()[:8]})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := env.store.GetPlayers(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, list, joiners)
	active := 0
	for i, p := range list {
		assert.Equal(t, i+1, p.Position)
		if p.IsActive() {
			active++
		}
	}
	assert.Equal(t, 12, active)
}
