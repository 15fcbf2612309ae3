package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/domain/access"
	"github.com/raisedeck/accesslink/internal/repository"
	accessrec "github.com/raisedeck/accesslink/internal/service/accessrec"
)

type memoryAccessRepo struct {
	records map[string]access.AccessRecord
}

func newMemoryAccessRepo() *memoryAccessRepo {
	return &memoryAccessRepo{records: map[string]access.AccessRecord{}}
}

func (m *memoryAccessRepo) Get(_ context.Context, uid string) (access.AccessRecord, error) {
	if rec, ok := m.records[uid]; ok {
		return rec, nil
	}
	return access.EmptyRecord(uid), nil
}

func (m *memoryAccessRepo) Upsert(_ context.Context, rec access.AccessRecord) (access.AccessRecord, error) {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.records[rec.UID] = rec
	return rec, nil
}

func (m *memoryAccessRepo) InTx(ctx context.Context, fn func(store repository.AccessStore) error) error {
	return fn(m)
}

func newAccessTestRouter(repo repository.AccessRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAccessHandler(accessrec.NewService(repo, zap.NewNop()), zap.NewNop())

	r := gin.New()
	r.GET("/founders/:uid/validation/access", h.Get)
	r.POST("/founders/:uid/validation/access", h.Save)
	return r
}

func TestGetMissingRecordReturnsDefaults(t *testing.T) {
	router := newAccessTestRouter(newMemoryAccessRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/founders/founder-1/validation/access", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "founder-1", body["uid"])
	require.Nil(t, body["created_at"])
	require.Nil(t, body["updated_at"])

	sc, ok := body["access_sc"].(map[string]any)
	require.True(t, ok)
	require.Empty(t, sc["selected"])
}

func TestSaveThenGetRoundTrip(t *testing.T) {
	router := newAccessTestRouter(newMemoryAccessRepo())

	payload := `{"access_sc":{"selected":["github"]},"access_notes":"ping me"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/founders/founder-1/validation/access", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/founders/founder-1/validation/access", nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ping me", body["access_notes"])
	require.NotNil(t, body["created_at"])

	sc := body["access_sc"].(map[string]any)
	require.Equal(t, []any{"github"}, sc["selected"])
}

func TestSaveNonObjectBody(t *testing.T) {
	router := newAccessTestRouter(newMemoryAccessRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/founders/founder-1/validation/access", strings.NewReader(`[1,2,3]`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_request")
}

func TestSaveNoRecognizedFields(t *testing.T) {
	router := newAccessTestRouter(newMemoryAccessRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/founders/founder-1/validation/access", strings.NewReader(`{"bogus":true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_request")
}
