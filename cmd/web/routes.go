package main

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/op-booking-app/internal/allocation"
	"github.com/AdamBeresnev/op-booking-app/internal/feed"
	"github.com/AdamBeresnev/op-booking-app/internal/httputil"
	"github.com/AdamBeresnev/op-booking-app/internal/metrics"
	"github.com/AdamBeresnev/op-booking-app/internal/middleware"
	"github.com/AdamBeresnev/op-booking-app/internal/roomlock"
	"github.com/AdamBeresnev/op-booking-app/internal/service"
	"github.com/AdamBeresnev/op-booking-app/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/markbates/goth/gothic"
	"github.com/prometheus/client_golang/prometheus"
)

type application struct {
	sessions  *scs.SessionManager
	userStore *store.UserStore
	users     *service.UserService
	rooms     *service.RoomService
	teams     *service.TeamService
	matches   *service.MatchService
	hub       *feed.Hub
	metrics   http.Handler
}

func newApplication(database *sqlx.DB, sessionManager *scs.SessionManager, hub *feed.Hub, registry *prometheus.Registry) *application {
	clock := clockwork.NewRealClock()
	roomStore := store.NewRoomStore(database)
	userStore := store.NewUserStore(database)

	deps := service.Deps{
		Locks:   roomlock.New(),
		Clock:   clock,
		Feed:    hub,
		Metrics: metrics.NewService(registry),
		Engine:  allocation.NewEngine(nil),
	}

	return &application{
		sessions:  sessionManager,
		userStore: userStore,
		users:     service.NewUserService(database, userStore, clock),
		rooms:     service.NewRoomService(database, roomStore, deps),
		teams:     service.NewTeamService(database, roomStore, deps),
		matches:   service.NewMatchService(database, roomStore, deps),
		hub:       hub,
		metrics:   metrics.NewMetricsHandler(registry),
	}
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", app.metrics)
	// The upgrade needs a hijackable writer, so the feed skips the session middleware.
	r.Get("/rooms/{id}/live", app.liveRoom)

	r.Group(func(r chi.Router) {
		r.Use(app.sessions.LoadAndSave)
		r.Use(middleware.LoadAuthenticatedUser(app.sessions, app.userStore))
		app.sessionRoutes(r)
	})

	return r
}

func (app *application) sessionRoutes(r chi.Router) {
	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		user, err := app.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		if err := app.sessions.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		app.sessions.Put(r.Context(), middleware.SessionUserKey, user.Identity())
		http.Redirect(w, r, "/rooms", http.StatusFound)
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := app.users.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		if err := app.sessions.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		app.sessions.Put(r.Context(), middleware.SessionUserKey, user.Identity())
		http.Redirect(w, r, "/rooms", http.StatusFound)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessions.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to logout", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.With(middleware.RequireAuth).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, middleware.GetAuthenticatedUser(r.Context()))
	})

	r.Get("/codes/{code}", app.getRoomByCode)

	r.Route("/rooms", func(r chi.Router) {
		// Anybody holding the link or the code can look at a room and put names down.
		r.Get("/{id}", app.getRoom)
		r.Get("/{id}/standings", app.standings)
		r.Get("/{id}/rotation", app.rotation)
		r.Post("/{id}/players", app.joinRoom)
		r.Delete("/{id}/players/{playerID}", app.removePlayer)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/", app.listRooms)
			r.Post("/", app.createRoom)
			r.Patch("/{id}", app.updateSettings)
			r.Put("/{id}/status", app.setStatus)
			r.Delete("/{id}", app.deleteRoom)

			r.Post("/{id}/teams", app.createTeams)
			r.Post("/{id}/teams/recreate", app.recreateTeams)
			r.Patch("/{id}/teams/{teamID}", app.renameTeam)
			r.Post("/{id}/allocate", app.allocate)
			r.Post("/{id}/reshuffle", app.reshuffle)
			r.Put("/{id}/players/{playerID}/team", app.assignPlayer)
			r.Delete("/{id}/players/{playerID}/team", app.unassignPlayer)

			r.Post("/{id}/fixtures", app.generateFixtures)
			r.Post("/{id}/matches/swap", app.swapMatches)
			r.Put("/{id}/matches/{matchID}/result", app.recordResult)
			r.Delete("/{id}/matches/{matchID}/result", app.clearResult)
		})
	})
}
