package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/db"
	"github.com/cozy-creator/medpredict/internal/db/drivers"
	"github.com/cozy-creator/medpredict/internal/db/migrations"
	"github.com/cozy-creator/medpredict/internal/db/repository"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/history"
	"github.com/cozy-creator/medpredict/internal/imaging"
	"github.com/cozy-creator/medpredict/internal/inference"
	"github.com/cozy-creator/medpredict/internal/mq"
	"github.com/cozy-creator/medpredict/internal/services/filestorage"
	"github.com/cozy-creator/medpredict/internal/services/fileuploader"
	"github.com/cozy-creator/medpredict/pkg/logger"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	mq           mq.MQ
	db           *bun.DB
	dbDriver     drivers.Driver
	config       *config.Config
	ctx          context.Context
	cancelFunc   context.CancelFunc
	filestorage  filestorage.FileStorage
	fileuploader *fileuploader.Uploader
	registry     *diagnosis.Registry
	history      *history.Service
	workers      sync.WaitGroup
	closeOnce    sync.Once

	Logger *zap.Logger

	APIKeyRepository     repository.IAPIKeyRepository
	PredictionRepository repository.IPredictionRepository
}

// errRequired marks option failures that abort NewApp.
var errRequired = errors.New("required component failed")

// Option funcs used to initialize the App struct. They run in order, so
// WithHistory must follow the options it depends on.
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithRegistry installs an already loaded registry.
func WithRegistry(registry *diagnosis.Registry) OptionFunc {
	return func(app *App) error {
		app.registry = registry
		return nil
	}
}

// WithModels loads the configured catalog with the configured runtime.
func WithModels() OptionFunc {
	return func(app *App) error {
		registry, err := loadModels(app)
		if err != nil {
			return fmt.Errorf("%w: models: %w", errRequired, err)
		}

		app.registry = registry
		return nil
	}
}

func loadModels(app *App) (*diagnosis.Registry, error) {
	catalog, err := diagnosis.CatalogFromConfig(app.config)
	if err != nil {
		return nil, err
	}

	filter, err := imaging.ParseFilter(app.config.ResizeFilter)
	if err != nil {
		return nil, err
	}

	return diagnosis.LoadRegistry(catalog, diagnosis.LoadOptions{
		Runtime:   app.config.Runtime,
		ModelsDir: app.config.ModelsDir,
		Filter:    filter,
		Logger:    app.Logger.Named("models"),
		Inference: inference.Options{
			LibraryPath:       app.config.ORTLibraryPath,
			IntraOpNumThreads: app.config.IntraOpThreads,
		},
	})
}

func WithDB(driver drivers.Driver) OptionFunc {
	return func(app *App) error {
		app.dbDriver = driver
		app.db = driver.GetDB()
		app.APIKeyRepository = repository.NewAPIKeyRepository(app.db)
		app.PredictionRepository = repository.NewPredictionRepository(app.db)
		return nil
	}
}

// WithDBInitialization connects to db.dsn and applies pending migrations.
func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		if !app.config.HistoryEnabled() {
			return nil
		}

		driver, err := db.NewConnection(app.ctx, app.config.DB)
		if err != nil {
			return err
		}

		group, err := migrations.Migrate(app.ctx, driver.GetDB())
		if err != nil {
			driver.Close()
			return err
		}
		if !group.IsZero() {
			app.Logger.Info("database migrated", zap.String("group", group.String()))
		}

		return WithDB(driver)(app)
	}
}

func WithMQ() OptionFunc {
	return func(app *App) error {
		queue, err := mq.NewMQ(app.config)
		if err != nil {
			return err
		}

		app.mq = queue
		app.Logger.Info("message queue ready", zap.String("type", mq.Type(queue)))
		return nil
	}
}

// WithFileUploader enables archiving of uploaded images.
func WithFileUploader() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.ctx, app.config)
		if err != nil {
			return err
		}

		app.filestorage = storage
		if app.config.ArchiveUploads {
			app.fileuploader = fileuploader.NewFileUploader(storage, app.config.UploadWorkers)
		}
		return nil
	}
}

// WithHistory starts the prediction recorder. It needs a database and a queue.
func WithHistory() OptionFunc {
	return func(app *App) error {
		if app.PredictionRepository == nil {
			return nil
		}
		if app.mq == nil {
			return fmt.Errorf("prediction history requires a message queue")
		}

		opts := []history.Option{history.WithLogger(app.Logger.Named("history"))}
		if app.fileuploader != nil {
			opts = append(opts, history.WithUploader(app.fileuploader))
		}

		app.history = history.NewService(app.mq, app.PredictionRepository, opts...)

		app.workers.Add(1)
		go func() {
			defer app.workers.Done()
			if err := app.history.Run(app.ctx); err != nil {
				app.Logger.Error("prediction recorder stopped", zap.Error(err))
			}
		}()

		return nil
	}
}

func NewApp(config *config.Config, options ...OptionFunc) (*App, error) {
	logger, err := logger.InitLogger(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     config,
		Logger:     logger,
		cancelFunc: cancel,
	}

	// Optional components log and continue; the model catalog is required.
	for _, opt := range options {
		if err := opt(app); err != nil {
			if errors.Is(err, errRequired) {
				app.Close()
				return nil, err
			}
			app.Logger.Error("failed to apply option", zap.Error(err))
		}
	}

	if app.registry == nil {
		app.registry = diagnosis.NewRegistry(diagnosis.DefaultCatalog())
	}

	return app, nil
}

func (app *App) Close() error {
	var errs []error

	app.closeOnce.Do(func() {
		app.cancelFunc()

		if app.mq != nil {
			errs = append(errs, app.mq.Close())
		}
		app.workers.Wait()

		if app.fileuploader != nil {
			app.fileuploader.Stop()
		}
		if app.dbDriver != nil {
			errs = append(errs, app.dbDriver.Close())
		}
		if app.registry != nil {
			errs = append(errs, app.registry.Close())
		}

		app.Logger.Sync()
	})

	return errors.Join(errs...)
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) MQ() mq.MQ {
	return app.mq
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Registry() *diagnosis.Registry {
	return app.registry
}

// History is nil when no database is configured.
func (app *App) History() *history.Service {
	return app.history
}

func (app *App) FileStorage() filestorage.FileStorage {
	return app.filestorage
}

func (app *App) Uploader() *fileuploader.Uploader {
	return app.fileuploader
}
