package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/db"
	"github.com/cozy-creator/medpredict/internal/db/migrations"
	"github.com/cozy-creator/medpredict/internal/db/models"
	"github.com/cozy-creator/medpredict/internal/db/repository"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/imaging"
	"github.com/cozy-creator/medpredict/internal/inference"
	"github.com/cozy-creator/medpredict/internal/server"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:    "test",
		Host:           "127.0.0.1",
		Port:           5001,
		DisableAuth:    true,
		MaxUploadSize:  1 << 20,
		FilesystemType: config.FilesystemLocal,
		AssetsDir:      t.TempDir(),
		TempDir:        t.TempDir(),
		UploadWorkers:  1,
		CORS:           &config.CORSConfig{AllowedOrigins: config.DefaultAllowedOrigins},
	}
}

func testRegistry(t *testing.T) *diagnosis.Registry {
	t.Helper()
	registry := diagnosis.NewRegistry(diagnosis.DefaultCatalog())

	require.NoError(t, registry.Register(diagnosis.Pneumonia, &inference.FuncPredictor{
		Shape: []int64{-1, 224, 224, 3},
		Fn: func(context.Context, *imaging.Tensor) ([][]float32, error) {
			return [][]float32{{0.9}}, nil
		},
	}, imaging.FilterLinear))

	require.NoError(t, registry.Register(diagnosis.BrainTumor, &inference.FuncPredictor{
		Fn: func(context.Context, *imaging.Tensor) ([][]float32, error) {
			return nil, errors.New("session exploded")
		},
	}, ""))

	registry.MarkUnavailable(diagnosis.Anemia, errors.New("best_cnn_model.onnx: no such file"))
	return registry
}

func newHandler(t *testing.T, cfg *config.Config, opts ...app.OptionFunc) (http.Handler, *app.App) {
	t.Helper()

	opts = append([]app.OptionFunc{app.WithRegistry(testRegistry(t))}, opts...)
	a, err := app.NewApp(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	srv.SetupRoutes(a)
	return srv.Handler(), a
}

func historyOptions(t *testing.T) []app.OptionFunc {
	t.Helper()
	ctx := context.Background()

	driver, err := db.NewConnection(ctx, &config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	})
	require.NoError(t, err)

	_, err = migrations.Migrate(ctx, driver.GetDB())
	require.NoError(t, err)

	return []app.OptionFunc{app.WithDB(driver), app.WithMQ(), app.WithFileUploader(), app.WithHistory()}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, "scan.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestIndexAndHealth(t *testing.T) {
	h, _ := newHandler(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ML Disease Prediction API is running.", rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPublicDirDoesNotShadowIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.PublicDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "index.html"), []byte("<html>frontend</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "app.js"), []byte("console.log(1)"), 0o644))
	h, _ := newHandler(t, cfg)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ML Disease Prediction API is running.", rec.Body.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, server.PublicPrefix+"/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "frontend")

	rec = serve(h, httptest.NewRequest(http.MethodGet, server.PublicPrefix+"/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
}

func TestPredictSuccess(t *testing.T) {
	h, _ := newHandler(t, testConfig(t))

	rec := serve(h, uploadRequest(t, "/predict/pneumonia", "image", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result diagnosis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Pneumonia", result.Prediction)
	assert.True(t, result.IsDiseasePresent)
	assert.InDelta(t, 0.9, result.Confidence, 1e-6)
	assert.Equal(t, [][]float32{{0.9}}, result.Raw)
}

func TestPredictErrors(t *testing.T) {
	h, _ := newHandler(t, testConfig(t))

	rec := serve(h, uploadRequest(t, "/predict/covid", "image", pngBytes(t)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown model: covid", errorBody(t, rec))

	rec = serve(h, uploadRequest(t, "/predict/pneumonia", "file", pngBytes(t)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image uploaded", errorBody(t, rec))

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/predict/pneumonia", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image uploaded", errorBody(t, rec))

	rec = serve(h, uploadRequest(t, "/predict/pneumonia", "image", []byte("this is not an image")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "invalid image")

	rec = serve(h, uploadRequest(t, "/predict/anemia", "image", pngBytes(t)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, errorBody(t, rec), "model not loaded")

	rec = serve(h, uploadRequest(t, "/predict/skin_cancer", "image", pngBytes(t)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(h, uploadRequest(t, "/predict/brain_tumor", "image", pngBytes(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "session exploded")
}

func TestPredictNonFiniteOutput(t *testing.T) {
	registry := diagnosis.NewRegistry(diagnosis.DefaultCatalog())
	require.NoError(t, registry.Register(diagnosis.Anemia, &inference.FuncPredictor{
		Fn: func(context.Context, *imaging.Tensor) ([][]float32, error) {
			return [][]float32{{float32(math.NaN())}}, nil
		},
	}, ""))
	h, _ := newHandler(t, testConfig(t), app.WithRegistry(registry))

	rec := serve(h, uploadRequest(t, "/predict/anemia", "image", pngBytes(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "non-finite")
}

func TestPredictBodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxUploadSize = 1024
	h, _ := newHandler(t, cfg)

	rec := serve(h, uploadRequest(t, "/predict/pneumonia", "image", bytes.Repeat([]byte{0xff}, 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORS(t *testing.T) {
	h, _ := newHandler(t, testConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/predict/pneumonia", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = serve(h, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListModels(t *testing.T) {
	h, _ := newHandler(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Models []diagnosis.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Models, 6)

	byName := map[diagnosis.Disease]diagnosis.ModelInfo{}
	for _, m := range body.Models {
		byName[m.Disease] = m
	}
	assert.True(t, byName[diagnosis.Pneumonia].Loaded)
	assert.False(t, byName[diagnosis.Anemia].Loaded)
	assert.Contains(t, byName[diagnosis.Anemia].Error, "no such file")
}

func TestPredictionsDisabledWithoutHistory(t *testing.T) {
	h, _ := newHandler(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictionHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.ArchiveUploads = true
	h, a := newHandler(t, cfg, historyOptions(t)...)
	require.NotNil(t, a.History())

	image := pngBytes(t)
	rec := serve(h, uploadRequest(t, "/predict/pneumonia", "image", image))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored []models.Prediction
	require.Eventually(t, func() bool {
		var err error
		stored, err = a.PredictionRepository.List(context.Background(), repository.PredictionFilter{})
		return err == nil && len(stored) == 1
	}, 5*time.Second, 20*time.Millisecond)

	prediction := stored[0]
	assert.Equal(t, "pneumonia", prediction.Disease)
	assert.Equal(t, "Pneumonia", prediction.Label)
	assert.Equal(t, hashutil.Blake3Hash(image), prediction.ImageHash)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:5001/file/%s.png", prediction.ImageHash), prediction.ImageURL)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/"+prediction.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, prediction.ID, got.ID)
	assert.Equal(t, [][]float32{{0.9}}, got.Raw)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions?disease=pneumonia&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), prediction.ID.String())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions?disease=covid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/00000000-0000-0000-0000-000000000001", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/file/"+prediction.ImageHash+".png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, image, rec.Body.Bytes())

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/file/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyAuthentication(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableAuth = false
	h, a := newHandler(t, cfg, historyOptions(t)...)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, uploadRequest(t, "/predict/pneumonia", "image", pngBytes(t)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	key := "test-key-0123456789"
	_, err := a.APIKeyRepository.Create(context.Background(), models.NewAPIKey(hashutil.Sha3256Hash([]byte(key)), "te****89"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.Header.Set("X-API-Key", key)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	require.NoError(t, a.APIKeyRepository.RevokeAPIKeyWithHash(context.Background(), hashutil.Sha3256Hash([]byte(key))))
	req = httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.Header.Set("X-API-Key", key)
	rec = serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "The provided API key is revoked", errorBody(t, rec))
}
