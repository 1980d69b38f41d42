package room

import (
	"time"

	"github.com/google/uuid"
)

type PlayerStatus string

const (
	Active  PlayerStatus = "active"
	Waiting PlayerStatus = "waiting"
)

type Player struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	RoomID   uuid.UUID  `db:"room_id" json:"roomId"`
	Name     string     `db:"name" json:"name"`
	JoinedAt *time.Time `db:"joined_at" json:"joinedAt,omitempty"`

	// AddedBy is nil for anonymous entries, UserID is nil for guests.
	AddedBy *string `db:"added_by" json:"addedBy,omitempty"`
	UserID  *string `db:"user_id" json:"userId,omitempty"`

	Status   PlayerStatus `db:"status" json:"status"`
	TeamID   *uuid.UUID   `db:"team_id" json:"teamId,omitempty"`
	Position int          `db:"position" json:"position"`
}

func (p *Player) IsActive() bool {
	return p.Status == Active
}

func (p *Player) HasTeam() bool {
	return p.TeamID != nil
}

// CanManagePlayer decides whether userID may remove or edit the entry. The
// room owner can manage anyone, everybody else only the entries they added or
// the one linked to their own account.
func CanManagePlayer(r *Room, p *Player, userID string) bool {
	if userID == "" {
		return false
	}
	if r.IsOwner(userID) {
		return true
	}
	if p.AddedBy != nil && *p.AddedBy == userID {
		return true
	}
	return p.UserID != nil && *p.UserID == userID
}
