package room

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

type PlayMode string

const (
	League     PlayMode = "league"
	Rotational PlayMode = "rotational"
)

func (m PlayMode) Valid() bool {
	return m == League || m == Rotational
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusAllocating Status = "allocating"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

var statusRank = map[Status]int{
	StatusOpen:       0,
	StatusAllocating: 1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsForward reports whether moving from s to next keeps the lifecycle moving
// forward (or stays put). Owners may still set any valid status.
func (s Status) IsForward(next Status) bool {
	return statusRank[next] >= statusRank[s]
}

type Room struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	PlayDate    time.Time `db:"play_date" json:"playDate"`
	Description string    `db:"description" json:"description"`
	LocationURL *string   `db:"location_url" json:"locationUrl,omitempty"`

	AcceptedCapacity int `db:"accepted_capacity" json:"acceptedCapacity"`
	NumTeams         int `db:"num_teams" json:"numTeams"`
	PlayersPerTeam   int `db:"players_per_team" json:"playersPerTeam"`

	PlayMode  PlayMode  `db:"play_mode" json:"playMode"`
	Status    Status    `db:"status" json:"status"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (r *Room) Settings() Settings {
	return Settings{
		AcceptedCapacity: r.AcceptedCapacity,
		NumTeams:         r.NumTeams,
		PlayersPerTeam:   r.PlayersPerTeam,
	}
}

func (r *Room) EffectiveCapacity() int {
	return r.Settings().EffectiveCapacity()
}

func (r *Room) IsOwner(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

// Settings are the capacity-affecting parts of a room.
type Settings struct {
	AcceptedCapacity int `json:"acceptedCapacity" validate:"gte=1"`
	NumTeams         int `json:"numTeams" validate:"gte=2"`
	PlayersPerTeam   int `json:"playersPerTeam" validate:"gte=1"`
}

var validate = validator.New()

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return eris.Wrap(ErrInvalidInput, err.Error())
	}
	return nil
}

// EffectiveCapacity is the real ceiling on active players: a room never
// accepts more active players than its teams have seats for.
func (s Settings) EffectiveCapacity() int {
	return min(s.AcceptedCapacity, s.NumTeams*s.PlayersPerTeam)
}
