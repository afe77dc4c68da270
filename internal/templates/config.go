package templates

import "os"

const configTemplate = `# medpredict configuration
port: 5001
host: 0.0.0.0
environment: dev

# go (pure Go, default) or ort (requires a build with -tags ORT)
runtime: go
resize_filter: catmullrom
max_upload_size: 10485760

enabled_models:
  - brain_tumor
  - breast_cancer
  - pneumonia
  - bone_fracture
  - anemia
  - skin_cancer

cors:
  allowed_origins:
    - http://localhost:5173
    - http://127.0.0.1:5173
    - http://localhost:3000
    - http://127.0.0.1:3000

disable_auth: true
filesystem_type: local
archive_uploads: false

# Leave dsn empty to disable prediction history.
db:
  driver: sqlite
  dsn: ""

# models:
#   pneumonia:
#     file: pneumonia_model_final.onnx
#     url: https://example.com/pneumonia_model_final.onnx
#     checksum: ""
#     threshold: 0.5
`

const envTemplate = `# Environment overrides, e.g.
# MEDPREDICT_PORT=5001
# MEDPREDICT_DB_DSN=file:medpredict.db
# MEDPREDICT_S3_ACCESS_KEY=
# MEDPREDICT_S3_SECRET_KEY=
# ONNXRUNTIME_SHARED_LIBRARY_PATH=
`

func GetConfigTemplate() string {
	return configTemplate
}

func GetEnvTemplate() string {
	return envTemplate
}

func WriteConfig(path string) error {
	return write(path, GetConfigTemplate())
}

func WriteEnv(path string) error {
	return write(path, GetEnvTemplate())
}

func write(path, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(content)
	if err != nil {
		return err
	}

	return nil
}
