package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/op-booking-app/internal/httputil"
	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/AdamBeresnev/op-booking-app/internal/service"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type statusRequest struct {
	Status room.Status `json:"status"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type assignRequest struct {
	TeamID uuid.UUID `json:"teamId"`
}

type resultRequest struct {
	Team1Score *int `json:"team1Score"`
	Team2Score *int `json:"team2Score"`
}

type swapRequest struct {
	First  uuid.UUID `json:"first"`
	Second uuid.UUID `json:"second"`
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return false
	}
	return true
}

// confirmed guards operations that throw data away. The caller has to say so
// with confirm=true.
func confirmed(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") != "true" {
		httputil.BadRequest(w, "This operation discards existing data, repeat it with confirm=true", nil)
		return false
	}
	return true
}

func (app *application) getRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := app.rooms.GetRoomData(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get room", err)
		return
	}
	httputil.JSON(w, http.StatusOK, data)
}

func (app *application) getRoomByCode(w http.ResponseWriter, r *http.Request) {
	found, err := app.rooms.GetRoomByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.Error(w, "Failed to get room", err)
		return
	}
	httputil.JSON(w, http.StatusOK, found)
}

func (app *application) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := app.rooms.ListRoomsForOwner(r.Context())
	if err != nil {
		httputil.Error(w, "Failed to list rooms", err)
		return
	}
	httputil.JSON(w, http.StatusOK, rooms)
}

func (app *application) createRoom(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRoomInput
	if !decode(w, r, &input) {
		return
	}
	created, err := app.rooms.CreateRoom(r.Context(), input)
	if err != nil {
		httputil.Error(w, "Failed to create room", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, created)
}

// liveRoom upgrades to a websocket that receives the room's state now and
// after every change.
func (app *application) liveRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := app.rooms.GetRoomData(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get room", err)
		return
	}
	// The upgrader has answered the request by the time this fails.
	if err := app.hub.Subscribe(w, r, id, data); err != nil {
		log.Warn("live subscription failed", "room_id", id, "err", err)
	}
}

func (app *application) joinRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var input service.JoinInput
	if !decode(w, r, &input) {
		return
	}
	player, err := app.rooms.JoinRoom(r.Context(), id, input)
	if err != nil {
		httputil.Error(w, "Failed to join room", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, player)
}

func (app *application) removePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := uuidParam(w, r, "playerID")
	if !ok {
		return
	}
	if err := app.rooms.RemovePlayer(r.Context(), id, playerID); err != nil {
		httputil.Error(w, "Failed to remove player", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) updateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var patch service.SettingsPatch
	if !decode(w, r, &patch) {
		return
	}
	updated, err := app.rooms.UpdateSettings(r.Context(), id, patch)
	if err != nil {
		httputil.Error(w, "Failed to update room", err)
		return
	}
	httputil.JSON(w, http.StatusOK, updated)
}

func (app *application) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if err := app.rooms.SetStatus(r.Context(), id, req.Status); err != nil {
		httputil.Error(w, "Failed to set status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok || !confirmed(w, r) {
		return
	}
	if err := app.rooms.DeleteRoom(r.Context(), id); err != nil {
		httputil.Error(w, "Failed to delete room", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) createTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teams, err := app.teams.CreateTeams(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to create teams", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, teams)
}

func (app *application) recreateTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok || !confirmed(w, r) {
		return
	}
	teams, err := app.teams.RecreateTeams(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to recreate teams", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, teams)
}

func (app *application) renameTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := uuidParam(w, r, "teamID")
	if !ok {
		return
	}
	var req renameRequest
	if !decode(w, r, &req) {
		return
	}
	if err := app.teams.RenameTeam(r.Context(), id, teamID, req.Name); err != nil {
		httputil.Error(w, "Failed to rename team", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) allocate(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	assignments, err := app.teams.AllocateUnassigned(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to allocate players", err)
		return
	}
	httputil.JSON(w, http.StatusOK, assignments)
}

func (app *application) reshuffle(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok || !confirmed(w, r) {
		return
	}
	pull := false
	if v := r.URL.Query().Get("pullFromWaiting"); v != "" {
		var err error
		if pull, err = strconv.ParseBool(v); err != nil {
			httputil.BadRequest(w, "Invalid pullFromWaiting", err)
			return
		}
	}
	res, err := app.teams.ReshuffleAll(r.Context(), id, pull)
	if err != nil {
		httputil.Error(w, "Failed to reshuffle teams", err)
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (app *application) assignPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := uuidParam(w, r, "playerID")
	if !ok {
		return
	}
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	if err := app.teams.AssignPlayer(r.Context(), id, playerID, req.TeamID); err != nil {
		httputil.Error(w, "Failed to assign player", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) unassignPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := uuidParam(w, r, "playerID")
	if !ok {
		return
	}
	if err := app.teams.UnassignPlayer(r.Context(), id, playerID); err != nil {
		httputil.Error(w, "Failed to unassign player", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) generateFixtures(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok || !confirmed(w, r) {
		return
	}
	matches, err := app.matches.GenerateFixtures(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to generate fixtures", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, matches)
}

func (app *application) recordResult(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return
	}
	var req resultRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Team1Score == nil || req.Team2Score == nil {
		httputil.BadRequest(w, "Both scores are required", nil)
		return
	}
	match, err := app.matches.RecordResult(r.Context(), id, matchID, *req.Team1Score, *req.Team2Score)
	if err != nil {
		httputil.Error(w, "Failed to record result", err)
		return
	}
	httputil.JSON(w, http.StatusOK, match)
}

func (app *application) clearResult(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return
	}
	if err := app.matches.ClearResult(r.Context(), id, matchID); err != nil {
		httputil.Error(w, "Failed to clear result", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) swapMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req swapRequest
	if !decode(w, r, &req) {
		return
	}
	if err := app.matches.SwapOrder(r.Context(), id, req.First, req.Second); err != nil {
		httputil.Error(w, "Failed to swap matches", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) standings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	standings, err := app.matches.Standings(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get standings", err)
		return
	}
	httputil.JSON(w, http.StatusOK, standings)
}

func (app *application) rotation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	round := 1
	if v := r.URL.Query().Get("round"); v != "" {
		var err error
		if round, err = strconv.Atoi(v); err != nil {
			httputil.BadRequest(w, "Invalid round", err)
			return
		}
	}
	view, err := app.matches.Rotation(r.Context(), id, round)
	if err != nil {
		httputil.Error(w, "Failed to get rotation", err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}
