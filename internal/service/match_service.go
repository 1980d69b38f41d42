package service

import (
	"context"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/schedule"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
)

type MatchService struct {
	coordinator
}

func NewMatchService(db *sqlx.DB, store *store.RoomStore, deps Deps) *MatchService {
	return &MatchService{coordinator: newCoordinator(db, store, deps)}
}

type RotationView struct {
	Round       int                     `json:"round"`
	TotalRounds int                     `json:"totalRounds"`
	Slots       []schedule.RotationSlot `json:"slots"`
}

// GenerateFixtures replaces every match of the room with a fresh round robin
// between its teams. Recorded results are lost.
func (s *MatchService) GenerateFixtures(ctx context.Context, roomID uuid.UUID) ([]room.Match, error) {
	var matches []room.Match
	err := s.mutate(ctx, "fixtures", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		if err := requireOwner(ctx, r); err != nil {
			return err
		}
		teams, err := s.store.GetTeamsTx(ctx, tx, r.ID)
		if err != nil {
			return eris.Wrap(err, "failed to get teams")
		}

		ids := make([]uuid.UUID, 0, len(teams))
		for _, t := range teams {
			ids = append(ids, t.ID)
		}
		fixtures, err := schedule.RoundRobin(ids)
		if err != nil {
			return err
		}

		if err := s.store.DeleteMatches(ctx, tx, r.ID); err != nil {
			return eris.Wrap(err, "failed to delete matches")
		}
		matches = schedule.Matches(r.ID, fixtures, s.now())
		if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
			return eris.Wrap(err, "failed to create matches")
		}
		return s.store.UpdateRoomStatusTx(ctx, tx, r.ID, room.StatusInProgress)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.AddFixtures(len(matches))
	log.Info("fixtures generated", "room_id", roomID, "matches", len(matches))
	return matches, nil
}

func (s *MatchService) RecordResult(ctx context.Context, roomID, matchID uuid.UUID, team1Score, team2Score int) (*room.Match, error) {
	if err := schedule.ValidateScores(team1Score, team2Score); err != nil {
		return nil, err
	}

	var match *room.Match
	err := s.mutate(ctx, "result", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		var err error
		match, err = s.ownedMatch(ctx, tx, r, matchID)
		if err != nil {
			return err
		}

		match.Status = room.MatchCompleted
		match.Team1Score = &team1Score
		match.Team2Score = &team2Score
		return s.store.UpdateMatchResult(ctx, tx, match)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncResults()
	return match, nil
}

func (s *MatchService) ClearResult(ctx context.Context, roomID, matchID uuid.UUID) error {
	return s.mutate(ctx, "clear_result", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		match, err := s.ownedMatch(ctx, tx, r, matchID)
		if err != nil {
			return err
		}

		match.Status = room.MatchScheduled
		match.Team1Score = nil
		match.Team2Score = nil
		return s.store.UpdateMatchResult(ctx, tx, match)
	})
}

// SwapOrder exchanges the display position of two matches.
func (s *MatchService) SwapOrder(ctx context.Context, roomID, first, second uuid.UUID) error {
	return s.mutate(ctx, "swap_order", roomID, func(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
		a, err := s.ownedMatch(ctx, tx, r, first)
		if err != nil {
			return err
		}
		b, err := s.ownedMatch(ctx, tx, r, second)
		if err != nil {
			return err
		}

		if err := s.store.UpdateMatchOrder(ctx, tx, a.ID, b.Order); err != nil {
			return err
		}
		return s.store.UpdateMatchOrder(ctx, tx, b.ID, a.Order)
	})
}

// ownedMatch loads a match of r after checking the caller owns the room.
func (s *MatchService) ownedMatch(ctx context.Context, tx *sqlx.Tx, r *room.Room, matchID uuid.UUID) (*room.Match, error) {
	if err := requireOwner(ctx, r); err != nil {
		return nil, err
	}
	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if match.RoomID != r.ID {
		return nil, eris.Wrapf(room.ErrNotFound, "match %s in room %s", matchID, r.ID)
	}
	return match, nil
}

func (s *MatchService) Standings(ctx context.Context, roomID uuid.UUID) ([]room.LeagueStanding, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	teams, err := s.store.GetTeams(ctx, roomID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get teams")
	}
	matches, err := s.store.GetMatches(ctx, roomID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get matches")
	}
	return schedule.Standings(teams, matches), nil
}

func (s *MatchService) Rotation(ctx context.Context, roomID uuid.UUID, round int) (*RotationView, error) {
	data, err := s.roomData(ctx, roomID)
	if err != nil {
		return nil, err
	}

	slots, err := schedule.Rotation(data.Teams, round)
	if err != nil {
		return nil, err
	}
	return &RotationView{
		Round:       round,
		TotalRounds: schedule.TotalRotationRounds(len(data.Teams)),
		Slots:       emptyIfNil(slots),
	}, nil
}
