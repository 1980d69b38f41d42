// Package roster decides which players of a room hold an active slot and
// which are queued on the waiting list.
package roster

import (
	"sort"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
)

// Recalculate rewrites position and status for every player. Players are
// ranked by join time, players without one first, ties keep their input
// order. The first capacity players are active, the rest wait.
func Recalculate(players []room.Player, capacity int) []room.Player {
	ordered := make([]room.Player, len(players))
	copy(ordered, players)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].JoinedAt, ordered[j].JoinedAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.Before(*b)
	})

	for i := range ordered {
		ordered[i].Position = i + 1
		ordered[i].Status = statusFor(ordered[i].Position, capacity)
	}
	return ordered
}

// Arrival places a newcomer at the end of the join order. The newcomer only
// gets an active slot if one is free; nobody already in the room is displaced.
func Arrival(players []room.Player, capacity int) (int, room.PlayerStatus) {
	active := 0
	for _, p := range players {
		if p.IsActive() {
			active++
		}
	}
	status := room.Waiting
	if active < capacity {
		status = room.Active
	}
	return len(players) + 1, status
}

func statusFor(position, capacity int) room.PlayerStatus {
	if position <= capacity {
		return room.Active
	}
	return room.Waiting
}

type Changes struct {
	Promoted []uuid.UUID
	Demoted  []uuid.UUID
	Moved    int
}

func (c Changes) Empty() bool {
	return len(c.Promoted) == 0 && len(c.Demoted) == 0 && c.Moved == 0
}

// Diff compares two snapshots of the same roster. Players missing from
// either side are ignored.
func Diff(before, after []room.Player) Changes {
	prev := make(map[uuid.UUID]room.Player, len(before))
	for _, p := range before {
		prev[p.ID] = p
	}

	var c Changes
	for _, p := range after {
		old, ok := prev[p.ID]
		if !ok {
			continue
		}
		switch {
		case old.Status != room.Active && p.Status == room.Active:
			c.Promoted = append(c.Promoted, p.ID)
		case old.Status == room.Active && p.Status != room.Active:
			c.Demoted = append(c.Demoted, p.ID)
		}
		if old.Position != p.Position {
			c.Moved++
		}
	}
	return c
}
