package schedule

import (
	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RotationSlot says which team's players line up in a slot for one round of
// rotational play.
type RotationSlot struct {
	Slot     int         `json:"slot"`
	SlotName string      `json:"slotName"`
	TeamID   uuid.UUID   `json:"teamId"`
	TeamName string      `json:"teamName"`
	Players  []uuid.UUID `json:"players"`
}

func TotalRotationRounds(teams int) int {
	return max(1, teams-1)
}

// Rotation shifts every team one slot along per round, so in round r slot i is
// taken by team (i + r - 1) mod len(teams). Teams carry their members.
func Rotation(teams []room.Team, round int) ([]RotationSlot, error) {
	if len(teams) == 0 {
		return nil, nil
	}
	if total := TotalRotationRounds(len(teams)); round < 1 || round > total {
		return nil, eris.Wrapf(room.ErrInvalidInput, "round %d out of range 1..%d", round, total)
	}

	slots := make([]RotationSlot, 0, len(teams))
	for i, t := range teams {
		rotated := teams[(i+round-1)%len(teams)]
		members := rotated.Members
		if members == nil {
			members = []uuid.UUID{}
		}
		slots = append(slots, RotationSlot{
			Slot:     i + 1,
			SlotName: t.Name,
			TeamID:   rotated.ID,
			TeamName: rotated.Name,
			Players:  members,
		})
	}
	return slots, nil
}
