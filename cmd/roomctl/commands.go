package main

import (
	"crypto/rand"
	"fmt"

	"github.com/AdamBeresnev/op-booking-app/internal/db"
	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/schedule"
	"github.com/AdamBeresnev/op-booking-app/internal/service"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func openDB(path string) (*sqlx.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database.DB); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func newMigrateCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB(*dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to %s\n", *dbPath)
			return nil
		},
	}
}

func newCodeCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Generate join codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for range count {
				code, err := room.GenerateCode(rand.Reader)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "How many codes to print")
	return cmd
}

func newFixturesCmd() *cobra.Command {
	var teams int

	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Print the round robin for a number of teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, teams)
			names := make(map[uuid.UUID]string, teams)
			for i := range ids {
				ids[i] = uuid.New()
				names[ids[i]] = fmt.Sprintf("Team %d", i+1)
			}

			fixtures, err := schedule.RoundRobin(ids)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			round := 0
			for _, f := range fixtures {
				if f.Round != round {
					round = f.Round
					fmt.Fprintf(out, "Round %d\n", round)
				}
				fmt.Fprintf(out, "  %2d. %s vs %s\n", f.Order, names[f.Home], names[f.Away])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&teams, "teams", "t", 4, "Number of teams")
	return cmd
}

func newStandingsCmd(dbPath *string) *cobra.Command {
	var roomID string

	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Print the league table of a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(roomID)
			if err != nil {
				return eris.Wrapf(err, "invalid room id %q", roomID)
			}

			database, err := openDB(*dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			matches := service.NewMatchService(database, store.NewRoomStore(database), service.Deps{})
			standings, err := matches.Standings(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), standingsTable(standings))
			return nil
		},
	}
	cmd.Flags().StringVarP(&roomID, "room", "r", "", "Room ID")
	cmd.MarkFlagRequired("room")
	return cmd
}

func standingsTable(standings []room.LeagueStanding) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Team", "P", "W", "D", "L", "GF", "GA", "GD", "Pts")
	for i, s := range standings {
		t.Row(
			fmt.Sprint(i+1), s.TeamName,
			fmt.Sprint(s.Played), fmt.Sprint(s.Won), fmt.Sprint(s.Drawn), fmt.Sprint(s.Lost),
			fmt.Sprint(s.GoalsFor), fmt.Sprint(s.GoalsAgainst), fmt.Sprintf("%+d", s.GoalDifference),
			fmt.Sprint(s.Points),
		)
	}
	return t.String()
}
