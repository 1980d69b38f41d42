// Package schedule builds league fixtures and derives standings and rotation
// views from them.
package schedule

import (
	"time"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Fixture is one pairing of the round robin. Round is 1-based, Order counts
// up from 1 across the whole schedule.
type Fixture struct {
	Home  uuid.UUID
	Away  uuid.UUID
	Round int
	Order int
}

// RoundRobin pairs every team with every other team exactly once using the
// circle method. An odd field is padded with a bye and fixtures against it are
// dropped.
func RoundRobin(teamIDs []uuid.UUID) ([]Fixture, error) {
	if len(teamIDs) < 2 {
		return nil, eris.Wrapf(room.ErrPrecondition, "round robin needs at least 2 teams, got %d", len(teamIDs))
	}

	n, bye := len(teamIDs), -1
	if n%2 != 0 {
		bye = n
		n++
	}

	rounds := n - 1
	perRound := n / 2

	fixtures := make([]Fixture, 0, len(teamIDs)*(len(teamIDs)-1)/2)
	order := 1
	for r := 0; r < rounds; r++ {
		for m := 0; m < perRound; m++ {
			home := (r + m) % (n - 1)
			away := (n - 1 - m + r) % (n - 1)
			// the last slot never rotates
			if m == 0 {
				away = n - 1
			}

			if home == bye || away == bye {
				continue
			}
			fixtures = append(fixtures, Fixture{
				Home:  teamIDs[home],
				Away:  teamIDs[away],
				Round: r + 1,
				Order: order,
			})
			order++
		}
	}
	return fixtures, nil
}

// Matches turns fixtures into scheduled, unscored matches of a room.
func Matches(roomID uuid.UUID, fixtures []Fixture, now time.Time) []room.Match {
	matches := make([]room.Match, 0, len(fixtures))
	for _, f := range fixtures {
		matches = append(matches, room.Match{
			ID:        uuid.New(),
			RoomID:    roomID,
			Team1ID:   f.Home,
			Team2ID:   f.Away,
			Status:    room.MatchScheduled,
			Round:     f.Round,
			Order:     f.Order,
			CreatedAt: now,
		})
	}
	return matches
}

func ValidateScores(team1, team2 int) error {
	if team1 < 0 || team2 < 0 {
		return eris.Wrapf(room.ErrInvalidInput, "scores must be non-negative, got %d-%d", team1, team2)
	}
	return nil
}
