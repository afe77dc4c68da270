package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Start the prediction server",
	RunE:  runApp,
}

// viper key -> flag name
var flagKeys = map[string]string{
	"port":             "port",
	"host":             "host",
	"environment":      "environment",
	"runtime":          "runtime",
	"ort_library_path": "ort-library-path",
	"intra_op_threads": "intra-op-threads",
	"resize_filter":    "resize-filter",
	"enabled_models":   "enabled-models",
	"max_upload_size":  "max-upload-size",
	"disable_auth":     "disable-auth",
	"public_dir":       "public-dir",
	"filesystem_type":  "filesystem-type",
	"archive_uploads":  "archive-uploads",
	"db.driver":        "db-driver",
	"db.dsn":           "db-dsn",
	"pulsar.url":       "pulsar-url",
	"s3.access_key":    "s3-access-key",
	"s3.secret_key":    "s3-secret-key",
	"s3.region_name":   "s3-region-name",
	"s3.bucket_name":   "s3-bucket-name",
	"s3.folder":        "s3-folder",
	"s3.public_url":    "s3-public-url",
	"s3.endpoint_url":  "s3-endpoint-url",
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", config.DefaultHost, "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration: 'dev', 'test' or 'prod'")
	flags.String("runtime", "go", "Inference runtime: 'go' or 'ort' (requires a build with -tags ORT)")
	flags.String("ort-library-path", "", "Path to the onnxruntime shared library")
	flags.Int("intra-op-threads", 0, "Threads per onnxruntime session; 0 lets the runtime decide")
	flags.String("resize-filter", "catmullrom", "Resampling filter used when resizing images")
	flags.StringSlice("enabled-models", config.DefaultEnabledModels, "Classifiers to load on startup")
	flags.Int64("max-upload-size", config.DefaultMaxUploadSize, "Maximum request body size in bytes")
	flags.Bool("disable-auth", true, "Disable API key authentication; enabling auth requires --db-dsn")
	flags.String("public-dir", "", "Path where static files should be served from under /app. Relative paths are relative to the current working directory.")
	flags.String("filesystem-type", config.FilesystemLocal, "Filesystem type for archived uploads: 'local' or 's3'")
	flags.Bool("archive-uploads", false, "Store uploaded images alongside prediction history")

	flags.String("db-driver", config.DBDriverSQLite, "Database driver: 'sqlite', 'pg' or 'libsql'")
	flags.String("db-dsn", "", "Database DSN (Connection URL or Path); enables prediction history")
	flags.String("pulsar-url", "", "URL of the pulsar broker. Example: pulsar://localhost:6650")

	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region-name", "", "S3 region name")
	flags.String("s3-bucket-name", "", "S3 bucket name")
	flags.String("s3-folder", "", "S3 folder")
	flags.String("s3-public-url", "", "Public URL for S3 files")
	flags.String("s3-endpoint-url", "", "S3 endpoint URL")

	for key, name := range flagKeys {
		viper.BindPFlag(key, flags.Lookup(name))
	}
}

func runApp(_ *cobra.Command, _ []string) error {
	application, err := app.NewApp(
		config.MustGetConfig(),
		app.WithModels(),
		app.WithDBInitialization(),
		app.WithMQ(),
		app.WithFileUploader(),
		app.WithHistory(),
	)
	if err != nil {
		return err
	}
	defer application.Close()

	log := application.Logger
	srv, err := server.NewServer(application.Config())
	if err != nil {
		return err
	}
	srv.SetupRoutes(application)

	errc := make(chan error, 1)
	go func() {
		log.Info("server started",
			zap.String("addr", srv.Addr()),
			zap.Int("models_loaded", application.Registry().Loaded()),
		)
		errc <- srv.Start()
	}()

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalc)

	select {
	case err := <-errc:
		return err
	case sig := <-signalc:
		log.Info("shutting down", zap.String("signal", sig.String()))
		return srv.Stop(context.Background())
	}
}
