package schedule

import (
	"sort"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
)

const (
	pointsWin  = 3
	pointsDraw = 1
)

// Standings computes the league table from completed matches. Matches without
// both scores or against teams outside the list are skipped. Rows are ordered
// by points, goal difference and goals scored; remaining ties keep team order.
func Standings(teams []room.Team, matches []room.Match) []room.LeagueStanding {
	table := make([]room.LeagueStanding, len(teams))
	index := make(map[uuid.UUID]int, len(teams))
	for i, t := range teams {
		table[i] = room.LeagueStanding{TeamID: t.ID, TeamName: t.Name}
		index[t.ID] = i
	}

	for _, m := range matches {
		if !m.HasResult() {
			continue
		}
		i, ok1 := index[m.Team1ID]
		j, ok2 := index[m.Team2ID]
		if !ok1 || !ok2 {
			continue
		}
		s1, s2 := *m.Team1Score, *m.Team2Score
		home, away := &table[i], &table[j]

		home.Played++
		away.Played++
		home.GoalsFor += s1
		home.GoalsAgainst += s2
		away.GoalsFor += s2
		away.GoalsAgainst += s1

		switch {
		case s1 > s2:
			home.Won++
			home.Points += pointsWin
			away.Lost++
		case s2 > s1:
			away.Won++
			away.Points += pointsWin
			home.Lost++
		default:
			home.Drawn++
			away.Drawn++
			home.Points += pointsDraw
			away.Points += pointsDraw
		}
	}

	for i := range table {
		table[i].GoalDifference = table[i].GoalsFor - table[i].GoalsAgainst
	}

	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		return a.GoalsFor > b.GoalsFor
	})
	return table
}
