package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/auth"
	"github.com/fathima-sithara/messaging-service/internal/config"
	"github.com/fathima-sithara/messaging-service/internal/domain"
	"github.com/fathima-sithara/messaging-service/internal/repository"
	"github.com/fathima-sithara/messaging-service/internal/service"
	"github.com/fathima-sithara/messaging-service/internal/storage"
	"github.com/fathima-sithara/messaging-service/internal/ws"
)

const testSecret = "test-secret"

type stubDirectory struct{}

func (stubDirectory) Lookup(_ context.Context, userID string) (*domain.UserSummary, error) {
	return &domain.UserSummary{ID: userID, Username: "user-" + userID}, nil
}

type fakeUploader struct {
	maxBytes int64
}

func (u *fakeUploader) Upload(_ context.Context, userID, filename, contentType string, data []byte) (*storage.Object, error) {
	if err := storage.CheckSize(int64(len(data)), u.maxBytes); err != nil {
		return nil, err
	}
	return &storage.Object{
		Key:  userID + "/" + filename,
		URL:  "https://cdn.local/" + filename,
		Type: storage.Classify(contentType),
		Size: int64(len(data)),
	}, nil
}

type testEnv struct {
	app *fiber.App
	svc *service.MessageService
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.RateLimitPerMin = 60000
	cfg.S3.MaxUploadBytes = maxUpload

	repo := repository.NewMemoryRepository()
	log := zap.NewNop().Sugar()
	svc := service.NewMessageService(repo, stubDirectory{}, log)
	hub := ws.NewHub()
	delivery := ws.NewDelivery(svc, hub, nil, log)
	wsrv := ws.NewServer(hub, delivery, nil, ws.Options{}, log)

	jv, err := auth.NewValidator(testSecret)
	require.NoError(t, err)

	app := NewServer(cfg, svc, wsrv, delivery, &fakeUploader{maxBytes: maxUpload}, jv, log)
	return &testEnv{app: app, svc: svc}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSendAndThread(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := doJSON(t, env.app, http.MethodPost, "/api/v1/message/send", "a",
		fiber.Map{"receiverId": "b", "content": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sent struct {
		Message string         `json:"message"`
		Data    domain.Message `json:"data"`
	}
	decodeBody(t, resp, &sent)
	assert.Equal(t, "Message sent successfully", sent.Message)
	assert.NotEmpty(t, sent.Data.ID)
	assert.False(t, sent.Data.Edited)

	resp = doJSON(t, env.app, http.MethodGet, "/api/v1/message/all/a", "b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var thread struct {
		Data []domain.Message `json:"data"`
	}
	decodeBody(t, resp, &thread)
	require.Len(t, thread.Data, 1)
	assert.Equal(t, sent.Data.ID, thread.Data[0].ID)
	assert.Equal(t, "hi", thread.Data[0].Content)
}

func TestSendValidationError(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := doJSON(t, env.app, http.MethodPost, "/api/v1/message/send", "a",
		fiber.Map{"content": "no receiver"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	thread, err := env.svc.Thread(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func TestUnauthenticatedRejected(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := doJSON(t, env.app, http.MethodGet, "/api/v1/message/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEditPermissions(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := doJSON(t, env.app, http.MethodPost, "/api/v1/message/send", "a",
		fiber.Map{"receiverId": "b", "content": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sent struct {
		Data domain.Message `json:"data"`
	}
	decodeBody(t, resp, &sent)

	resp = doJSON(t, env.app, http.MethodPatch, "/api/v1/message/"+sent.Data.ID, "b",
		fiber.Map{"content": "hijacked"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodPatch, "/api/v1/message/no-such-id", "a",
		fiber.Map{"content": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodPatch, "/api/v1/message/"+sent.Data.ID, "a",
		fiber.Map{"content": "hi!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited struct {
		Data domain.Message `json:"data"`
	}
	decodeBody(t, resp, &edited)
	assert.Equal(t, "hi!", edited.Data.Content)
	assert.True(t, edited.Data.Edited)
	assert.NotNil(t, edited.Data.EditedAt)
}

func TestConversationsOrder(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := doJSON(t, env.app, http.MethodPost, "/api/v1/message/send", "u",
		fiber.Map{"receiverId": "b", "content": "older"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, env.app, http.MethodPost, "/api/v1/message/send", "u",
		fiber.Map{"receiverId": "c", "content": "newest"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, "/api/v1/message/conversations", "u", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var convs struct {
		Data []domain.Conversation `json:"data"`
	}
	decodeBody(t, resp, &convs)
	require.Len(t, convs.Data, 2)
	assert.Equal(t, "c", convs.Data[0].UserData.ID)
	assert.Equal(t, "user-c", convs.Data[0].UserData.Username)
	assert.Equal(t, "newest", convs.Data[0].LastMessage.Content)
	assert.Equal(t, "b", convs.Data[1].UserData.ID)
}

func TestOversizeUploadRejectedBeforePersistence(t *testing.T) {
	env := newTestEnv(t, 16) // 16-byte limit for the boundary test

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("receiverId", "b"))
	fw, err := w.CreateFormFile("file", "big.bin")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("x"), 64))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message/send", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "a"))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The store saw nothing.
	thread, err := env.svc.Thread(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func TestMultipartSendCarriesFileMetadata(t *testing.T) {
	env := newTestEnv(t, 1024)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("receiverId", "b"))
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="pic.png"`)
	hdr.Set("Content-Type", "image/png")
	fw, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("not-really-a-png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/message/send", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "a"))

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sent struct {
		Data domain.Message `json:"data"`
	}
	decodeBody(t, resp, &sent)
	assert.Equal(t, domain.TypeImage, sent.Data.Type)
	assert.Equal(t, "https://cdn.local/pic.png", sent.Data.FileURL)
	assert.Equal(t, int64(len("not-really-a-png")), sent.Data.FileSize)
	assert.Equal(t, "pic.png", sent.Data.Content)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
