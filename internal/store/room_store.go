package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
)

type RoomStore struct {
	db *sqlx.DB
}

func NewRoomStore(db *sqlx.DB) *RoomStore {
	return &RoomStore{db: db}
}

const (
	createRoomQuery = `INSERT INTO rooms (id, code, play_date, description, location_url, accepted_capacity, num_teams, players_per_team, play_mode, status, owner_id, created_at)
		VALUES (:id, :code, :play_date, :description, :location_url, :accepted_capacity, :num_teams, :players_per_team, :play_mode, :status, :owner_id, :created_at)`
	updateRoomQuery = `UPDATE rooms SET
		play_date = :play_date,
		description = :description,
		location_url = :location_url,
		accepted_capacity = :accepted_capacity,
		num_teams = :num_teams,
		players_per_team = :players_per_team,
		play_mode = :play_mode,
		status = :status
		WHERE id = :id`
	createPlayerQuery = `INSERT INTO players (id, room_id, name, joined_at, added_by, user_id, status, team_id, position)
		VALUES (:id, :room_id, :name, :joined_at, :added_by, :user_id, :status, :team_id, :position)`
	createTeamsQuery = `INSERT INTO teams (id, room_id, name, created_at)
		VALUES (:id, :room_id, :name, :created_at)`
	createMatchesQuery = `INSERT INTO matches (id, room_id, team_1_id, team_2_id, status, team_1_score, team_2_score, round, match_order, created_at)
		VALUES (:id, :room_id, :team_1_id, :team_2_id, :status, :team_1_score, :team_2_score, :round, :match_order, :created_at)`
)

// notFound turns a missing row into room.ErrNotFound so callers can classify it.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(room.ErrNotFound, "%s %v", what, id)
	}
	return eris.Wrapf(err, "failed to get %s %v", what, id)
}

// Rooms

func (s *RoomStore) CreateRoom(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
	_, err := tx.NamedExecContext(ctx, createRoomQuery, r)
	return err
}

func (s *RoomStore) GetRoom(ctx context.Context, id uuid.UUID) (*room.Room, error) {
	return getRoom(ctx, s.db, id)
}

func (s *RoomStore) GetRoomTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*room.Room, error) {
	return getRoom(ctx, tx, id)
}

func getRoom(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*room.Room, error) {
	var r room.Room
	if err := sqlx.GetContext(ctx, q, &r, "SELECT * FROM rooms WHERE id = ?", id); err != nil {
		return nil, notFound(err, "room", id)
	}
	return &r, nil
}

func (s *RoomStore) GetRoomByCode(ctx context.Context, code string) (*room.Room, error) {
	code = room.NormalizeCode(code)
	var r room.Room
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM rooms WHERE code = ?", code); err != nil {
		return nil, notFound(err, "room with code", code)
	}
	return &r, nil
}

func (s *RoomStore) GetRoomsByOwner(ctx context.Context, ownerID string) ([]room.Room, error) {
	var rooms []room.Room
	err := s.db.SelectContext(ctx, &rooms, "SELECT * FROM rooms WHERE owner_id = ? ORDER BY play_date DESC, created_at DESC", ownerID)
	return rooms, err
}

func (s *RoomStore) UpdateRoom(ctx context.Context, tx *sqlx.Tx, r *room.Room) error {
	_, err := tx.NamedExecContext(ctx, updateRoomQuery, r)
	return err
}

func (s *RoomStore) UpdateRoomStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status room.Status) error {
	_, err := tx.ExecContext(ctx, "UPDATE rooms SET status = ? WHERE id = ?", status, id)
	return err
}

// DeleteRoom removes the room together with everything that belongs to it.
func (s *RoomStore) DeleteRoom(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	for _, q := range []string{
		"DELETE FROM matches WHERE room_id = ?",
		"DELETE FROM players WHERE room_id = ?",
		"DELETE FROM teams WHERE room_id = ?",
		"DELETE FROM rooms WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// Players

func (s *RoomStore) CreatePlayer(ctx context.Context, tx *sqlx.Tx, p *room.Player) error {
	_, err := tx.NamedExecContext(ctx, createPlayerQuery, p)
	return err
}

func (s *RoomStore) GetPlayers(ctx context.Context, roomID uuid.UUID) ([]room.Player, error) {
	return getPlayers(ctx, s.db, roomID)
}

func (s *RoomStore) GetPlayersTx(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) ([]room.Player, error) {
	return getPlayers(ctx, tx, roomID)
}

func getPlayers(ctx context.Context, q sqlx.QueryerContext, roomID uuid.UUID) ([]room.Player, error) {
	var players []room.Player
	err := sqlx.SelectContext(ctx, q, &players, "SELECT * FROM players WHERE room_id = ? ORDER BY position ASC", roomID)
	return players, err
}

func (s *RoomStore) DeletePlayer(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM players WHERE id = ?", id)
	return err
}

// UpdatePlayerSlots writes position and status of every given player.
func (s *RoomStore) UpdatePlayerSlots(ctx context.Context, tx *sqlx.Tx, players []room.Player) error {
	stmt, err := tx.PrepareNamedContext(ctx, "UPDATE players SET position = :position, status = :status WHERE id = :id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range players {
		if _, err := stmt.ExecContext(ctx, &players[i]); err != nil {
			return eris.Wrapf(err, "failed to update player %s", players[i].ID)
		}
	}
	return nil
}

func (s *RoomStore) SetPlayerTeam(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID, teamID *uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "UPDATE players SET team_id = ? WHERE id = ?", teamID, playerID)
	return err
}

func (s *RoomStore) SetPlayerStatus(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID, status room.PlayerStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE players SET status = ? WHERE id = ?", status, playerID)
	return err
}

func (s *RoomStore) ClearPlayerTeams(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "UPDATE players SET team_id = NULL WHERE room_id = ?", roomID)
	return err
}

// Teams

func (s *RoomStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []room.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createTeamsQuery, teams)
	return err
}

func (s *RoomStore) GetTeams(ctx context.Context, roomID uuid.UUID) ([]room.Team, error) {
	return getTeams(ctx, s.db, roomID)
}

func (s *RoomStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) ([]room.Team, error) {
	return getTeams(ctx, tx, roomID)
}

func getTeams(ctx context.Context, q sqlx.QueryerContext, roomID uuid.UUID) ([]room.Team, error) {
	var teams []room.Team
	err := sqlx.SelectContext(ctx, q, &teams, "SELECT * FROM teams WHERE room_id = ? ORDER BY created_at ASC, rowid ASC", roomID)
	return teams, err
}

func (s *RoomStore) RenameTeam(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID, name string) error {
	_, err := tx.ExecContext(ctx, "UPDATE teams SET name = ? WHERE id = ?", name, teamID)
	return err
}

// DeleteTeams drops every team of the room along with its fixtures and
// clears the players' assignments.
func (s *RoomStore) DeleteTeams(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) error {
	if err := s.ClearPlayerTeams(ctx, tx, roomID); err != nil {
		return err
	}
	if err := s.DeleteMatches(ctx, tx, roomID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM teams WHERE room_id = ?", roomID)
	return err
}

// Matches

func (s *RoomStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []room.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createMatchesQuery, matches)
	return err
}

func (s *RoomStore) GetMatches(ctx context.Context, roomID uuid.UUID) ([]room.Match, error) {
	return getMatches(ctx, s.db, roomID)
}

func (s *RoomStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) ([]room.Match, error) {
	return getMatches(ctx, tx, roomID)
}

func getMatches(ctx context.Context, q sqlx.QueryerContext, roomID uuid.UUID) ([]room.Match, error) {
	var matches []room.Match
	err := sqlx.SelectContext(ctx, q, &matches, "SELECT * FROM matches WHERE room_id = ? ORDER BY match_order ASC", roomID)
	return matches, err
}

func (s *RoomStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*room.Match, error) {
	var m room.Match
	if err := tx.GetContext(ctx, &m, "SELECT * FROM matches WHERE id = ?", id); err != nil {
		return nil, notFound(err, "match", id)
	}
	return &m, nil
}

func (s *RoomStore) UpdateMatchResult(ctx context.Context, tx *sqlx.Tx, m *room.Match) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE matches SET
		status = :status,
		team_1_score = :team_1_score,
		team_2_score = :team_2_score
		WHERE id = :id`, m)
	return err
}

func (s *RoomStore) UpdateMatchOrder(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, order int) error {
	_, err := tx.ExecContext(ctx, "UPDATE matches SET match_order = ? WHERE id = ?", order, id)
	return err
}

func (s *RoomStore) DeleteMatches(ctx context.Context, tx *sqlx.Tx, roomID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE room_id = ?", roomID)
	return err
}
