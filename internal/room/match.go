package room

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchCompleted MatchStatus = "completed"
)

type Match struct {
	ID     uuid.UUID `db:"id" json:"id"`
	RoomID uuid.UUID `db:"room_id" json:"roomId"`

	Team1ID uuid.UUID `db:"team_1_id" json:"team1Id"`
	Team2ID uuid.UUID `db:"team_2_id" json:"team2Id"`

	Status     MatchStatus `db:"status" json:"status"`
	Team1Score *int        `db:"team_1_score" json:"team1Score"`
	Team2Score *int        `db:"team_2_score" json:"team2Score"`

	// Position in the schedule for reconstructing the view
	Round int `db:"round" json:"round"`
	Order int `db:"match_order" json:"order"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (m *Match) HasResult() bool {
	return m.Status == MatchCompleted && m.Team1Score != nil && m.Team2Score != nil
}

type LeagueStanding struct {
	TeamID         uuid.UUID `json:"teamId"`
	TeamName       string    `json:"teamName"`
	Played         int       `json:"played"`
	Won            int       `json:"won"`
	Drawn          int       `json:"drawn"`
	Lost           int       `json:"lost"`
	GoalsFor       int       `json:"goalsFor"`
	GoalsAgainst   int       `json:"goalsAgainst"`
	GoalDifference int       `json:"goalDifference"`
	Points         int       `json:"points"`
}
