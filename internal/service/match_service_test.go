package service

import (
	"context"
	"errors"
	"testing"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roomWithTeams creates a room with n teams and allocates 2n players to them.
func roomWithTeams(t *testing.T, env *testEnv, n int) (*room.Room, []room.Team) {
	t.Helper()
	r := env.createRoom(t, room.Settings{AcceptedCapacity: 2 * n, NumTeams: n, PlayersPerTeam: 2})
	env.joinN(t, r.ID, 2*n)
	teams, err := env.teams.CreateTeams(asUser(ownerID), r.ID)
	require.NoError(t, err)
	_, err = env.teams.AllocateUnassigned(asUser(ownerID), r.ID)
	require.NoError(t, err)
	return r, teams
}

func TestGenerateFixtures(t *testing.T) {
	env := newTestEnv(t, nil)
	r, teams := roomWithTeams(t, env, 4)

	_, err := env.matches.GenerateFixtures(asUser(strangerID), r.ID)
	assert.True(t, errors.Is(err, room.ErrForbidden))

	matches, err := env.matches.GenerateFixtures(asUser(ownerID), r.ID)
	require.NoError(t, err)
	require.Len(t, matches, 6)

	pairs := make(map[[2]uuid.UUID]bool)
	for i, m := range matches {
		assert.Equal(t, i+1, m.Order)
		assert.Equal(t, room.MatchScheduled, m.Status)
		assert.NotEqual(t, m.Team1ID, m.Team2ID)
		key := [2]uuid.UUID{m.Team1ID, m.Team2ID}
		if m.Team2ID.String() < m.Team1ID.String() {
			key = [2]uuid.UUID{m.Team2ID, m.Team1ID}
		}
		assert.False(t, pairs[key], "pair scheduled twice")
		pairs[key] = true
	}
	assert.Len(t, pairs, len(teams)*(len(teams)-1)/2)

	fetched, err := env.rooms.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusInProgress, fetched.Status)
	assert.Equal(t, 6.0, testutil.ToFloat64(env.metrics.Fixtures))

	// regenerating throws the old schedule and its results away
	_, err = env.matches.RecordResult(asUser(ownerID), r.ID, matches[0].ID, 1, 0)
	require.NoError(t, err)
	again, err := env.matches.GenerateFixtures(asUser(ownerID), r.ID)
	require.NoError(t, err)
	data, err := env.rooms.GetRoomData(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, data.Matches, 6)
	assert.Equal(t, again[0].ID, data.Matches[0].ID)
	for _, m := range data.Matches {
		assert.False(t, m.HasResult())
		assert.NotEqual(t, matches[0].ID, m.ID)
	}
}

func TestGenerateFixtures_NeedsTwoTeams(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.createRoom(t, tenAcrossTwo)

	_, err := env.matches.GenerateFixtures(asUser(ownerID), r.ID)
	assert.True(t, errors.Is(err, room.ErrPrecondition))

	fetched, err := env.rooms.GetRoom(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusOpen, fetched.Status, "failed generation changes nothing")

	_, err = env.matches.GenerateFixtures(asUser(ownerID), uuid.New())
	assert.True(t, errors.Is(err, room.ErrNotFound))
}

func TestRecordAndClearResult(t *testing.T) {
	env := newTestEnv(t, nil)
	r, _ := roomWithTeams(t, env, 2)
	matches, err := env.matches.GenerateFixtures(asUser(ownerID), r.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	id := matches[0].ID

	_, err = env.matches.RecordResult(asUser(ownerID), r.ID, id, -1, 2)
	assert.True(t, errors.Is(err, room.ErrInvalidInput))
	_, err = env.matches.RecordResult(asUser(strangerID), r.ID, id, 1, 2)
	assert.True(t, errors.Is(err, room.ErrForbidden))
	_, err = env.matches.RecordResult(asUser(ownerID), r.ID, uuid.New(), 1, 2)
	assert.True(t, errors.Is(err, room.ErrNotFound))

	m, err := env.matches.RecordResult(asUser(ownerID), r.ID, id, 3, 0)
	require.NoError(t, err)
	assert.True(t, m.HasResult())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Results))

	standings, err := env.matches.Standings(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, m.Team1ID, standings[0].TeamID)
	assert.Equal(t, 3, standings[0].Points)
	assert.Equal(t, 3, standings[0].GoalDifference)
	assert.Equal(t, -3, standings[1].GoalDifference)

	require.NoError(t, env.matches.ClearResult(asUser(ownerID), r.ID, id))
	data, err := env.rooms.GetRoomData(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, room.MatchScheduled, data.Matches[0].Status)
	assert.Nil(t, data.Matches[0].Team1Score)

	standings, err = env.matches.Standings(context.Background(), r.ID)
	require.NoError(t, err)
	for _, s := range standings {
		assert.Zero(t, s.Played)
		assert.Zero(t, s.Points)
	}
}

func TestRecordResult_OtherRoomsMatch(t *testing.T) {
	env := newTestEnv(t, nil)
	first, _ := roomWithTeams(t, env, 2)
	second, _ := roomWithTeams(t, env, 2)
	matches, err := env.matches.GenerateFixtures(asUser(ownerID), first.ID)
	require.NoError(t, err)

	_, err = env.matches.RecordResult(asUser(ownerID), second.ID, matches[0].ID, 1, 1)
	assert.True(t, errors.Is(err, room.ErrNotFound))
}

func TestStandings(t *testing.T) {
	env := newTestEnv(t, nil)
	r, teams := roomWithTeams(t, env, 3)
	matches, err := env.matches.GenerateFixtures(asUser(ownerID), r.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	scores := [][2]int{{3, 1}, {2, 2}, {0, 1}}
	points := make(map[uuid.UUID]int)
	for i, m := range matches {
		_, err := env.matches.RecordResult(asUser(ownerID), r.ID, m.ID, scores[i][0], scores[i][1])
		require.NoError(t, err)
		switch {
		case scores[i][0] > scores[i][1]:
			points[m.Team1ID] += 3
		case scores[i][0] < scores[i][1]:
			points[m.Team2ID] += 3
		default:
			points[m.Team1ID]++
			points[m.Team2ID]++
		}
	}

	standings, err := env.matches.Standings(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, standings, len(teams))

	total, goalDiff := 0, 0
	for i, s := range standings {
		assert.Equal(t, points[s.TeamID], s.Points, s.TeamName)
		assert.Equal(t, 2, s.Played)
		assert.Equal(t, s.Played, s.Won+s.Drawn+s.Lost)
		if i > 0 {
			assert.GreaterOrEqual(t, standings[i-1].Points, s.Points)
		}
		total += s.Points
		goalDiff += s.GoalDifference
	}
	assert.Equal(t, 8, total)
	assert.Zero(t, goalDiff)

	_, err = env.matches.Standings(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, room.ErrNotFound))
}

func TestSwapOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	r, _ := roomWithTeams(t, env, 3)
	matches, err := env.matches.GenerateFixtures(asUser(ownerID), r.ID)
	require.NoError(t, err)

	require.NoError(t, env.matches.SwapOrder(asUser(ownerID), r.ID, matches[0].ID, matches[2].ID))
	data, err := env.rooms.GetRoomData(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, matches[2].ID, data.Matches[0].ID)
	assert.Equal(t, matches[1].ID, data.Matches[1].ID)
	assert.Equal(t, matches[0].ID, data.Matches[2].ID)

	err = env.matches.SwapOrder(asUser(strangerID), r.ID, matches[0].ID, matches[1].ID)
	assert.True(t, errors.Is(err, room.ErrForbidden))
}

func TestRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	r, teams := roomWithTeams(t, env, 3)

	view, err := env.matches.Rotation(context.Background(), r.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Round)
	assert.Equal(t, 2, view.TotalRounds)
	require.Len(t, view.Slots, 3)
	assert.Equal(t, teams[1].ID, view.Slots[0].TeamID)
	assert.Equal(t, teams[0].ID, view.Slots[2].TeamID)
	assert.Equal(t, "Team 1", view.Slots[0].SlotName)
	for _, slot := range view.Slots {
		assert.Len(t, slot.Players, 2)
	}

	_, err = env.matches.Rotation(context.Background(), r.ID, 3)
	assert.True(t, errors.Is(err, room.ErrInvalidInput))

	empty := env.createRoom(t, tenAcrossTwo)
	view, err = env.matches.Rotation(context.Background(), empty.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, view.Slots)
}
