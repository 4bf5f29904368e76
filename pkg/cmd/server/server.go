package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // profiling is opt-in via flag
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/gridrush/engine/log"
	"github.com/gridrush/engine/pkg/catalog"
	"github.com/gridrush/engine/pkg/config"
	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/server/api"
	"github.com/gridrush/engine/pkg/server/ws"
	"github.com/gridrush/engine/pkg/service"
	"github.com/gridrush/engine/pkg/storage"
	"github.com/gridrush/engine/pkg/utils/broadcast"
)

const defaultLapTimeout = 0 * time.Second

var appConfig config.Config // holds processed config values

func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the race engine server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			appConfig = config.Config{}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer()
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"http/ws server listen address")
	cmd.Flags().StringVar(&config.DBFile,
		"db-file",
		"gridrush.db",
		"path of the sqlite database file")
	cmd.Flags().StringVar(&config.TrackFile,
		"track-file",
		"track.yml",
		"path of the track definition file")
	cmd.Flags().StringVar(&config.CarFile,
		"car-file",
		"cars.yml",
		"path of the car definition file")
	cmd.Flags().StringVar(&config.LapTimeout,
		"lap-timeout",
		"0s",
		"duration a lap waits for submissions before force-resolving (0 disables)")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules to narrow logger output")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().BoolVar(&appConfig.PrintMessage,
		"print-message",
		false,
		"if true and log level is debug, the message payload will be printed")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

//nolint:funlen,cyclop // wiring it all up takes space
func startServer() error {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if config.LogFilter != "" {
		filtered, err := log.NewWithFilters(logger, config.LogFilter)
		if err != nil {
			return fmt.Errorf("invalid log filter: %w", err)
		}
		logger = filtered
	}
	log.ResetDefault(logger)

	log.Debug("Config:",
		log.String("addr", config.ServerAddr),
		log.String("dbFile", config.DBFile),
		log.String("trackFile", config.TrackFile),
		log.String("carFile", config.CarFile),
		log.String("lapTimeout", config.LapTimeout),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // local profiling endpoint
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	track, err := catalog.LoadTrack(config.TrackFile)
	if err != nil {
		log.Error("could not load track", log.ErrorField(err))
		return err
	}
	cars, err := catalog.LoadCars(config.CarFile)
	if err != nil {
		log.Error("could not load cars", log.ErrorField(err))
		return err
	}
	log.Info("catalog loaded",
		log.String("track", track.Name),
		log.Int("sectors", track.NumSectors()),
		log.Int("cars", len(cars)))

	store, err := storage.NewManager(config.DBFile, log.Default().Named("storage"))
	if err != nil {
		log.Error("could not open database", log.ErrorField(err))
		return err
	}
	defer store.Close()
	if past, racesErr := store.Races(context.Background()); racesErr == nil {
		log.Info("race archive opened", log.Int("pastRaces", len(past)))
	}

	lapTimeout, err := time.ParseDuration(config.LapTimeout)
	if err != nil {
		log.Warn("invalid lap-timeout, policy disabled", log.ErrorField(err))
		lapTimeout = defaultLapTimeout
	}

	svc := service.NewRaceService(
		service.WithLapTimeout(lapTimeout),
		service.WithStore(store),
		service.WithLogger(log.Default().Named("service")))

	results := broadcast.NewBroadcastServer("lapResults", svc.Results())
	defer results.Close()

	mux := registerHandlers(svc, results, track, cars)

	log.Info("Starting server", log.String("addr", config.ServerAddr))
	//nolint:gosec // no timeout needed for long-lived ws connections
	server := &http.Server{
		Addr:    config.ServerAddr,
		Handler: newCORS().Handler(mux),
	}
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil &&
			serveErr != http.ErrServerClosed {

			log.Fatal("server could not be started", log.ErrorField(serveErr))
		}
	}()
	log.Info("Server started")
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	v := <-sigChan
	log.Debug("Got signal ", log.Any("signal", v))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", log.ErrorField(err))
	}
	log.Info("Server terminated")
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func registerHandlers(
	svc *service.RaceService,
	results broadcast.BroadcastServer[*model.LapResult],
	track *model.Track,
	cars map[string]model.CarSetup,
) *http.ServeMux {
	mux := http.NewServeMux()

	hub := ws.NewHub(
		ws.WithService(svc),
		ws.WithResults(results),
		ws.WithLogger(log.Default().Named("ws")),
		ws.WithPrintMessages(appConfig.PrintMessage))
	mux.HandleFunc("/ws", hub.ServeWS)

	handler := api.NewHandler(
		api.WithService(svc),
		api.WithCatalog(track, cars),
		api.WithLogger(log.Default().Named("api")))
	mux.Handle("/api/", handler.Mux())
	return mux
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	// The browser clients live on other origins during development, so
	// the CORS setup is permissive.
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		MaxAge:         int(2 * time.Hour / time.Second),
	})
}
