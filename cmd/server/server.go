package main

import (
	"context"
	"errors"
	repository "github.com/adamlounds/diacates-go/adapters"
	"github.com/adamlounds/diacates-go/config"
	"github.com/adamlounds/diacates-go/controllers"
	"github.com/adamlounds/diacates-go/middleware"
	"github.com/adamlounds/diacates-go/models"
	"github.com/adamlounds/diacates-go/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	socketio "github.com/googollee/go-socket.io"
	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var cfg config.ServerConfig
	err := cfg.RegisterEnv()
	if err != nil {
		panic(err)
	}

	var base slog.Handler
	if cfg.LogFormat == "text" {
		base = tint.NewHandler(os.Stderr, &tint.Options{Level: cfg.LogLevel, TimeFormat: time.Kitchen})
	} else {
		base = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	log := slog.New(slogctx.NewHandler(base, nil))
	slog.SetDefault(log.With(slog.Int("pid", os.Getpid())))
	ctx := slogctx.NewCtx(context.Background(), slog.Default())

	run(ctx, cfg)
}

func run(ctx context.Context, cfg config.ServerConfig) {
	log := slogctx.FromCtx(ctx)
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	repos, err := repository.Open(serverCtx, cfg.Storage, cfg.Location)
	if err != nil {
		log.Error("run cannot open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		err := repos.Close()
		if err != nil {
			log.Warn("cannot close storage", slog.Any("error", err))
		}
	}()

	authService := &models.AuthService{AuthRepository: repos.Auth}
	err = authService.EnsureAdmin(serverCtx, cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		log.Error("run cannot create admin", slog.Any("error", err))
		os.Exit(1)
	}
	sessions := middleware.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL)
	authnMW := controllers.AuthnMiddleware{AuthService: authService, Sessions: sessions}

	sockSvr := socketio.NewServer(nil)
	socketC := controllers.SocketController{Context: serverCtx, SockSvr: sockSvr, Authn: authnMW}
	socketC.Register()
	go func() {
		err := sockSvr.Serve()
		if err != nil {
			log.Error("socket server terminated", slog.Any("error", err))
		}
	}()
	defer sockSvr.Close()

	entryService := &models.EntryService{EntryRepository: repos.Entries, Notifier: socketC}
	dataService := func(userID string) controllers.EntryDataService {
		return entryService.ForUser(userID)
	}

	v, err := views.New(cfg.Locale)
	if err != nil {
		log.Error("run cannot parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	pages := controllers.Pages{
		DataService: dataService,
		AuthService: authService,
		Sessions:    sessions,
		Views:       v,
		Locale:      cfg.Locale,
		Location:    cfg.Location,
		SortOrder:   controllers.SortOrder(cfg.SortOrder),
	}
	apiV1C := controllers.ApiV1{
		DataService:     dataService,
		AuthService:     authService,
		Sessions:        sessions,
		Location:        cfg.Location,
		EntryRepository: repos.Entries,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(authnMW.SetAuthentication)

	r.Get("/", pages.Home)
	r.Get("/signin", pages.SignInForm)
	r.Post("/signin", pages.SignIn)
	r.Post("/signout", pages.SignOut)
	r.Post("/preferences/table-mode", pages.ToggleTableMode)
	r.Route("/entries", func(r chi.Router) {
		r.Use(authnMW.RequireSignIn)
		r.Get("/{id}", pages.EditEntry)
		r.Post("/{id}", pages.SubmitEntry)
		r.Post("/{id}/delete", pages.DeleteEntry)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", apiV1C.CreateSession)
		r.With(authnMW.Authz("api:entries:read")).Get("/entries", apiV1C.ListEntries)
		r.With(authnMW.Authz("api:entries:read")).Get("/entries/{id}", apiV1C.EntryByID)
		r.With(authnMW.Authz("api:entries:create")).Post("/entries", apiV1C.CreateEntry)
		r.With(authnMW.Authz("api:entries:update")).Put("/entries/{id}", apiV1C.UpdateEntry)
		r.With(authnMW.Authz("api:entries:delete")).Delete("/entries/{id}", apiV1C.DeleteEntry)
		r.With(authnMW.Authz("api:entries:read")).Get("/status", apiV1C.Status)
	})
	// StripSlashes turns /socket.io/ into /socket.io
	r.Handle("/socket.io", sockSvr)
	r.Handle("/socket.io/*", sockSvr)
	r.Mount("/debug", chimiddleware.Profiler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: r}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		shutdownCtx, _ := context.WithTimeout(serverCtx, time.Second*10) //nolint:govet
		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Error("graceful shutdown timed out, forcing exit")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Error("cannot shutdown server", slog.Any("error", err))
		}
		serverStopCtx()
	}()

	log.Info("Starting server on", "address", cfg.Server.Address)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server terminated", slog.Any("error", err))
	}
	log.Info("shutdown ok")
	<-serverCtx.Done()
}
