// Package allocation splits the players of a room into teams.
package allocation

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

type Assignment struct {
	PlayerID uuid.UUID `json:"playerId"`
	TeamID   uuid.UUID `json:"teamId"`
}

// Reshuffle is the outcome of a full reallocation. Cleared holds every player
// that lost a team, Promoted the waiting players that got a seat.
type Reshuffle struct {
	Cleared     []uuid.UUID  `json:"cleared"`
	Assignments []Assignment `json:"assignments"`
	Promoted    []uuid.UUID  `json:"promoted"`
}

// Engine is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine returns an engine drawing from src. A nil src seeds from the
// runtime's random source.
func NewEngine(src rand.Source) *Engine {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Engine{rng: rand.New(src)}
}

// SequentialFill seats active players that have no team yet. Teams are walked
// in name order and topped up to perTeam before moving on. Players left over
// once every seat is taken stay unassigned.
func (e *Engine) SequentialFill(players []room.Player, teams []room.Team, perTeam int) []Assignment {
	if len(teams) == 0 || perTeam <= 0 {
		return nil
	}

	var pool []uuid.UUID
	for _, p := range players {
		if p.IsActive() && !p.HasTeam() {
			pool = append(pool, p.ID)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	e.shuffle(pool)

	filled := make(map[uuid.UUID]int, len(teams))
	for _, p := range players {
		if p.HasTeam() {
			filled[*p.TeamID]++
		}
	}

	return fill(pool, byName(teams), perTeam, filled)
}

// FullReshuffle drops every assignment and deals the room out again. Active
// players are shuffled; with pullFromWaiting the waiting list follows them in
// position order, unshuffled. Only the first len(teams)*perTeam candidates
// get a seat.
func (e *Engine) FullReshuffle(players []room.Player, teams []room.Team, perTeam int, pullFromWaiting bool) Reshuffle {
	var res Reshuffle
	for _, p := range players {
		if p.HasTeam() {
			res.Cleared = append(res.Cleared, p.ID)
		}
	}
	if len(teams) == 0 || perTeam <= 0 {
		return res
	}

	var active []uuid.UUID
	var waiting []room.Player
	for _, p := range players {
		if p.IsActive() {
			active = append(active, p.ID)
		} else {
			waiting = append(waiting, p)
		}
	}
	e.shuffle(active)

	pool := active
	fromWaiting := make(map[uuid.UUID]bool)
	if pullFromWaiting {
		sort.SliceStable(waiting, func(i, j int) bool {
			return waiting[i].Position < waiting[j].Position
		})
		for _, p := range waiting {
			pool = append(pool, p.ID)
			fromWaiting[p.ID] = true
		}
	}

	if seats := len(teams) * perTeam; len(pool) > seats {
		pool = pool[:seats]
	}

	res.Assignments = fill(pool, byName(teams), perTeam, nil)
	for _, a := range res.Assignments {
		if fromWaiting[a.PlayerID] {
			res.Promoted = append(res.Promoted, a.PlayerID)
		}
	}
	return res
}

// Assign moves a single player to a team. Team size is not checked.
func (e *Engine) Assign(players []room.Player, teams []room.Team, playerID, teamID uuid.UUID) (Assignment, error) {
	if !containsPlayer(players, playerID) {
		return Assignment{}, eris.Wrapf(room.ErrNotFound, "player %s", playerID)
	}
	if !containsTeam(teams, teamID) {
		return Assignment{}, eris.Wrapf(room.ErrNotFound, "team %s", teamID)
	}
	return Assignment{PlayerID: playerID, TeamID: teamID}, nil
}

// NewTeams builds n empty teams named "Team 1" to "Team n".
func NewTeams(roomID uuid.UUID, n int, now time.Time) []room.Team {
	teams := make([]room.Team, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		teams = append(teams, room.Team{
			ID:        uuid.New(),
			RoomID:    roomID,
			Name:      fmt.Sprintf("Team %d", i),
			CreatedAt: now,
			Members:   []uuid.UUID{},
		})
	}
	return teams
}

// Rosters derives the member list of every team from the players' team
// assignment, keeping the players' relative order.
func Rosters(teams []room.Team, players []room.Player) map[uuid.UUID][]uuid.UUID {
	rosters := make(map[uuid.UUID][]uuid.UUID, len(teams))
	for _, t := range teams {
		rosters[t.ID] = []uuid.UUID{}
	}
	for _, p := range players {
		if !p.HasTeam() {
			continue
		}
		if members, ok := rosters[*p.TeamID]; ok {
			rosters[*p.TeamID] = append(members, p.ID)
		}
	}
	return rosters
}

func (e *Engine) shuffle(ids []uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// Plain string order, so "Team 10" sorts before "Team 2".
func byName(teams []room.Team) []room.Team {
	sorted := make([]room.Team, len(teams))
	copy(sorted, teams)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

func fill(pool []uuid.UUID, teams []room.Team, perTeam int, filled map[uuid.UUID]int) []Assignment {
	var out []Assignment
	next := 0
	for _, t := range teams {
		for seats := perTeam - filled[t.ID]; seats > 0 && next < len(pool); seats-- {
			out = append(out, Assignment{PlayerID: pool[next], TeamID: t.ID})
			next++
		}
		if next == len(pool) {
			break
		}
	}
	return out
}

func containsPlayer(players []room.Player, id uuid.UUID) bool {
	for _, p := range players {
		if p.ID == id {
			return true
		}
	}
	return false
}

func containsTeam(teams []room.Team, id uuid.UUID) bool {
	for _, t := range teams {
		if t.ID == id {
			return true
		}
	}
	return false
}
