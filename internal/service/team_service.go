package service

import (
	"context"
	"strings"

	"github.com/AdamBeresnev/op-booking-app/internal/allocation"
	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
)

type TeamService struct {
	coordinator
}

func NewTeamService(db *sqlx.DB, store *store.RoomStore, deps Deps) *TeamService {
	return &TeamService{coordinator: newCoordinator(db, store, deps)}
}

// CreateTeams sets up the room's teams for the first time.
func (s *TeamService) CreateTeams(ctx context.Context, roomID uuid.UUID) ([]room.Team, error) {
	var teams []room.Team
	err := s.mutate(ctx, "create_teams", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		existing, err := s.store.GetTeamsTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get teams")
		}
		if len(existing) > 0 {
			return eris.Wrapf(room.ErrPrecondition, "room %s already has teams, recreate them instead", r.ID)
		}

		teams, err = s.createTeams(ctx, tx, r)
		return err
	})
	return teams, err
}

// RecreateTeams throws away every team, assignment and fixture of the room
// and starts over with a fresh set.
func (s *TeamService) RecreateTeams(ctx context.Context, roomID uuid.UUID) ([]room.Team, error) {
	var teams []room.Team
	err := s.mutate(ctx, "recreate_teams", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		if err := s.store.DeleteTeams(ctx, tx, r.ID); err != nil {
			return eris.Wrap(err, "failed to delete teams")
		}

		var err error
		teams, err = s.createTeams(ctx, tx, r)
		return err
	})
	if err == nil {
		log.Info("teams recreated", "room_id", roomID, "teams", len(teams))
	}
	return teams, err
}

func (s *TeamService) createTeams(ctx context.Context, tx *sqlx.Tx, r *room.Room) ([]room.Team, error) {
	teams := allocation.NewTeams(r.ID, r.NumTeams, s.now())
	if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
		return nil, eris.Wrap(err, "failed to create teams")
	}
	if err := s.store.UpdateRoomStatusTx(ctx, tx, r.ID, room.StatusAllocating); err != nil {
		return nil, eris.Wrap(err, "failed to update room status")
	}
	return teams, nil
}

// AllocateUnassigned seats active players without a team, leaving everybody
// already on a team where they are.
func (s *TeamService) AllocateUnassigned(ctx context.Context, roomID uuid.UUID) ([]allocation.Assignment, error) {
	var assignments []allocation.Assignment
	err := s.mutate(ctx, "allocate", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		players, teams, err := s.rosterTx(ctx, tx, r.ID)
		if err != nil {
			return err
		}

		assignments = s.deps.Engine.SequentialFill(players, teams, r.PlayersPerTeam)
		return s.apply(ctx, tx, assignments)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncAllocations("sequential")
	log.Info("players allocated", "room_id", roomID, "assigned", len(assignments))
	return emptyIfNil(assignments), nil
}

// ReshuffleAll deals every team out again from scratch. With pullFromWaiting
// waiting players fill seats left over by the active ones and become active.
// When nobody can be dealt the current assignments are left untouched.
func (s *TeamService) ReshuffleAll(ctx context.Context, roomID uuid.UUID, pullFromWaiting bool) (allocation.Reshuffle, error) {
	var res allocation.Reshuffle
	err := s.mutate(ctx, "reshuffle", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		players, teams, err := s.rosterTx(ctx, tx, r.ID)
		if err != nil {
			return err
		}

		res = s.deps.Engine.FullReshuffle(players, teams, r.PlayersPerTeam, pullFromWaiting)
		if len(res.Assignments) == 0 {
			// nobody to deal; manual assignments stay
			return nil
		}
		if err := s.store.ClearPlayerTeams(ctx, tx, r.ID); err != nil {
			return eris.Wrap(err, "failed to clear teams")
		}
		if err := s.apply(ctx, tx, res.Assignments); err != nil {
			return err
		}
		for _, id := range res.Promoted {
			if err := s.store.SetPlayerStatus(ctx, tx, id, room.Active); err != nil {
				return eris.Wrapf(err, "failed to promote player %s", id)
			}
		}
		return nil
	})
	if err != nil {
		return allocation.Reshuffle{}, err
	}
	if len(res.Assignments) == 0 {
		log.Info("nothing to reshuffle", "room_id", roomID, "pull_from_waiting", pullFromWaiting)
		return allocation.Reshuffle{
			Cleared:     []uuid.UUID{},
			Assignments: []allocation.Assignment{},
			Promoted:    []uuid.UUID{},
		}, nil
	}

	s.deps.Metrics.IncAllocations("reshuffle")
	s.deps.Metrics.AddPromotions(len(res.Promoted))
	log.Info("teams reshuffled", "room_id", roomID, "assigned", len(res.Assignments), "promoted", len(res.Promoted))
	return res, nil
}

// AssignPlayer moves a player to a team. Team size is not enforced here.
func (s *TeamService) AssignPlayer(ctx context.Context, roomID, playerID, teamID uuid.UUID) error {
	return s.mutate(ctx, "assign", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		players, teams, err := s.rosterTx(ctx, tx, r.ID)
		if err != nil {
			return err
		}

		a, err := s.deps.Engine.Assign(players, teams, playerID, teamID)
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, []allocation.Assignment{a})
	})
}

func (s *TeamService) UnassignPlayer(ctx context.Context, roomID, playerID uuid.UUID) error {
	return s.mutate(ctx, "unassign", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		players, err := s.store.GetPlayersTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get players")
		}
		if !hasPlayer(players, playerID) {
			return eris.Wrapf(room.ErrNotFound, "player %s", playerID)
		}
		return s.store.SetPlayerTeam(ctx, tx, playerID, nil)
	})
}

func (s *TeamService) RenameTeam(ctx context.Context, roomID, teamID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if err := validate.Var(name, "required,max=50"); err != nil {
		return validationError(err)
	}

	return s.mutate(ctx, "rename_team", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		teams, err := s.store.GetTeamsTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get teams")
		}
		for _, t := range teams {
			if t.ID == teamID {
				return s.store.RenameTeam(ctx, tx, teamID, name)
			}
		}
		return eris.Wrapf(room.ErrNotFound, "team %s", teamID)
	})
}

func (s *TeamService) rosterTx(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) ([]room.Player, []room.Team, error) {
	players, err := s.store.GetPlayersTx(ctx, tx, roomID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "failed to get players")
	}
	teams, err := s.store.GetTeamsTx(ctx, tx, roomID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "failed to get teams")
	}
	return players, teams, nil
}

func (s *TeamService) apply(ctx context.Context, tx *sqlx.Tx, assignments []allocation.Assignment) error {
	for _, a := range assignments {
		if err := s.store.SetPlayerTeam(ctx, tx, a.PlayerID, &a.TeamID); err != nil {
			return eris.Wrapf(err, "failed to assign player %s", a.PlayerID)
		}
	}
	return nil
}

func hasPlayer(players []room.Player, id uuid.UUID) bool {
	for _, p := range players {
		if p.ID == id {
			return true
		}
	}
	return false
}
