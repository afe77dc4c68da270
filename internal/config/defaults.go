package config

import "errors"

const (
	DefaultPort          = 5001
	DefaultHost          = "0.0.0.0"
	DefaultHomeDir       = "~/.medpredict"
	DefaultMaxUploadSize = 10 << 20
)

// PredictionsTopic carries one event per successful classification.
const PredictionsTopic = "medpredict/predictions"

var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

var DefaultEnabledModels = []string{
	"brain_tumor",
	"breast_cancer",
	"pneumonia",
	"bone_fracture",
	"anemia",
	"skin_cancer",
}

var (
	ErrHomeNotSet       = errors.New("medpredict home directory is not set")
	ErrHomeExpandFailed = errors.New("failed to expand medpredict home directory")
	ErrAuthRequiresDB   = errors.New("api key authentication requires db.dsn to be set")
)
