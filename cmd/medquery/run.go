package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/auth"
	"github.com/smarthealth/medquery/pkg/llms"
	"github.com/smarthealth/medquery/pkg/models"
	"github.com/smarthealth/medquery/pkg/server"
	"github.com/smarthealth/medquery/pkg/store/postgres"
)

const (
	ErrStoreTypeNotSet   = "store.type must be set"
	ErrPostgresDSNNotSet = "store.postgres.dsn must be set"
	StoreTypePostgres    = "postgres"
)

// run is the entrypoint for the medquery server
func run() {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring medquery: %s", err)
	}

	handleCLIOptions(cfg)

	log.Infof("Starting medquery server version %s", config.VersionString)

	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)

	srv := server.Create(appState)

	log.Infof("Listening on: %s", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal(err)
	}
}

// NewAppState creates an AppState struct from the config file / ENV,
// initializes the store, and creates the LLM and embeddings clients
func NewAppState(cfg *config.Config) *models.AppState {
	ctx := context.Background()

	llmClient, err := llms.NewLLMClient(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	embeddingsClient, err := llms.NewEmbeddingsClient(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	appState := &models.AppState{
		LLMClient:        llmClient,
		EmbeddingsClient: embeddingsClient,
		Config:           cfg,
	}

	db := initializeStore(ctx, appState)
	setupSignalHandler(db)
	setupPurgeProcessor(ctx, appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("Error dumping config: %s", err)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
	if generateKey {
		fmt.Println(auth.GenerateJWT(cfg, &models.Identity{
			UserID: "cli",
			Role:   models.RoleClinician,
		}))
		os.Exit(0)
	}
}

// initializeStore initializes the record index, patient store, and audit
// store based on the config file / ENV
func initializeStore(ctx context.Context, appState *models.AppState) *bun.DB {
	if appState.Config.Store.Type == "" {
		log.Fatal(ErrStoreTypeNotSet)
	}
	if appState.Config.Store.Type != StoreTypePostgres {
		log.Fatalf("store.type (%s) is not supported", appState.Config.Store.Type)
	}
	if appState.Config.Store.Postgres.DSN == "" {
		log.Fatal(ErrPostgresDSNNotSet)
	}

	db, err := postgres.NewPostgresConn(appState.Config.Store.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if appState.Config.Log.Level == "debug" {
		pgDebugLogging(db)
	}

	if err := postgres.CreateSchema(ctx, appState.Config, db); err != nil {
		log.Fatal(err)
	}

	appState.RecordIndex = postgres.NewRecordIndexDAO(
		db, appState.Config.EmbeddingsClient.Dimensions,
	)
	appState.PatientStore = postgres.NewPatientStoreDAO(db)
	appState.AuditStore = postgres.NewAuditStoreDAO(db)

	log.Info("Using store: ", appState.Config.Store.Type)

	return db
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}

// setupSignalHandler sets up a signal handler to close the database
// connection on termination
func setupSignalHandler(db *bun.DB) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		if err := db.Close(); err != nil {
			log.Errorf("Error closing database connection: %v", err)
		}
		os.Exit(0)
	}()
}

// setupPurgeProcessor sets up a go routine to purge soft-deleted records from
// the record index at a regular interval. It's cancellable via the passed
// context. If Config.DataConfig.PurgeEvery is 0, this function does nothing.
func setupPurgeProcessor(ctx context.Context, appState *models.AppState) {
	interval := time.Duration(appState.Config.DataConfig.PurgeEvery) * time.Minute
	if interval == 0 {
		log.Debug("purge delete processor disabled")
		return
	}

	log.Infof("Starting purge delete processor. Purging every %v", interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping purge delete processor")
				return
			default:
				err := appState.RecordIndex.PurgeDeleted(ctx)
				if err != nil {
					log.Errorf("error purging deleted records: %v", err)
				}
			}
			time.Sleep(interval)
		}
	}()
}
