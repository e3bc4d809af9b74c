package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/dto"
	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type timetableServiceMock struct {
	generateReq dto.GenerateTimetableRequest
	actor       string
	query       dto.TimetableQuery
	slotsReq    dto.UpdateSlotsRequest
	deleted     string
	err         error
}

func (m *timetableServiceMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerationResponse, error) {
	m.generateReq = req
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerationResponse{
		Timetable: &models.Timetable{ID: "tt-1", Version: 1, Status: models.TimetableStatusDraft},
		Cohort:    req.Cohort,
		Phase:     scheduler.PhaseAllPlaced,
		Seed:      42,
	}, nil
}

func (m *timetableServiceMock) Simulate(ctx context.Context, req dto.SimulateTimetableRequest) (*dto.GenerationResponse, error) {
	return &dto.GenerationResponse{Cohort: req.Cohort, Phase: scheduler.PhasePartiallyPlaced, Unplaced: []string{"c9"}}, m.err
}

func (m *timetableServiceMock) Scenario(ctx context.Context, req dto.ScenarioRequest) (*dto.GenerationResponse, error) {
	return &dto.GenerationResponse{Cohort: req.Cohort, Phase: scheduler.PhaseAllPlaced}, m.err
}

func (m *timetableServiceMock) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	m.query = query
	return []models.Timetable{{ID: "tt-2", Version: 2}, {ID: "tt-1", Version: 1}}, m.err
}

func (m *timetableServiceMock) Get(ctx context.Context, id string) (*dto.TimetableDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.TimetableDetail{
		Timetable: models.Timetable{ID: id},
		Slots:     []models.TimetableSlot{{TimetableID: id, CourseID: "c1", Day: "Monday", Time: "09:00", RoomID: "R1"}},
	}, nil
}

func (m *timetableServiceMock) UpdateSlots(ctx context.Context, id string, req dto.UpdateSlotsRequest, actor string) (*models.Timetable, error) {
	m.slotsReq = req
	m.actor = actor
	return &models.Timetable{ID: "tt-3", Version: 3}, m.err
}

func (m *timetableServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *timetableServiceMock) Publish(ctx context.Context, id, actor string) (*models.Timetable, error) {
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timetable{ID: id, Status: models.TimetableStatusPublished}, nil
}

func newTimetableRouter(svc timetableService, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(svc)
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta(), func(c *gin.Context) {
		if claims != nil {
			c.Set(internalmiddleware.ContextUserKey, claims)
		}
	})
	group := router.Group("/timetables", internalmiddleware.RequireRoles(models.RoleAdmin))
	group.POST("/generate", h.Generate)
	group.POST("/simulate", h.Simulate)
	group.POST("/scenarios", h.Scenario)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.GET("/:id/slots", h.Slots)
	group.PUT("/:id/slots", h.UpdateSlots)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/publish", h.Publish)
	return router
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestTimetableGenerateSuccess(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, adminClaims())

	body := []byte(`{"cohort":{"year":2,"branch":"CSE","division":"A","program":"BTECH"},"seed":42}`)
	w := perform(router, http.MethodPost, "/timetables/generate", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", svc.actor)
	assert.Equal(t, 2, svc.generateReq.Cohort.Year)
	require.NotNil(t, svc.generateReq.Seed)
	assert.Equal(t, int64(42), *svc.generateReq.Seed)

	payload := decodeEnvelope(t, w)
	meta := payload["meta"].(map[string]interface{})
	assert.Equal(t, "all_placed", meta["phase"])
	assert.EqualValues(t, 42, meta["seed"])
}

func TestTimetableGenerateInvalidJSON(t *testing.T) {
	router := newTimetableRouter(&timetableServiceMock{}, adminClaims())
	w := perform(router, http.MethodPost, "/timetables/generate", []byte(`{"cohort":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableGenerateMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{appErrors.Clone(appErrors.ErrLocked, "generation already running"), http.StatusLocked},
		{appErrors.Clone(appErrors.ErrPreconditionFailed, "no rooms"), http.StatusPreconditionFailed},
		{appErrors.Clone(appErrors.ErrValidation, "bad cohort"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		router := newTimetableRouter(&timetableServiceMock{err: tc.err}, adminClaims())
		w := perform(router, http.MethodPost, "/timetables/generate", []byte(`{"cohort":{"year":2}}`))
		assert.Equal(t, tc.want, w.Code)
	}
}

func TestTimetableRoutesRequireAdmin(t *testing.T) {
	router := newTimetableRouter(&timetableServiceMock{}, nil)
	w := perform(router, http.MethodPost, "/timetables/generate", []byte(`{}`))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	router = newTimetableRouter(&timetableServiceMock{}, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	w = perform(router, http.MethodPost, "/timetables/generate", []byte(`{}`))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTimetableSimulateAndScenarioArePreviews(t *testing.T) {
	router := newTimetableRouter(&timetableServiceMock{}, adminClaims())

	w := perform(router, http.MethodPost, "/timetables/simulate", []byte(`{"cohort":{"year":2,"branch":"CSE","division":"A","program":"BTECH"}}`))
	require.Equal(t, http.StatusOK, w.Code)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, "preview", meta["mode"])

	w = perform(router, http.MethodPost, "/timetables/scenarios", []byte(`{"cohort":{"year":2,"branch":"CSE","division":"A","program":"BTECH"},"scenario":{"name":"r1-closed","removeRooms":["R1"]}}`))
	require.Equal(t, http.StatusOK, w.Code)
	meta = decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, "r1-closed", meta["scenario"])
}

func TestTimetableListBindsQuery(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, adminClaims())

	w := perform(router, http.MethodGet, "/timetables?year=2&branch=CSE&division=A&program=BTECH", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.TimetableQuery{Year: 2, Branch: "CSE", Division: "A", Program: "BTECH"}, svc.query)

	w = perform(router, http.MethodGet, "/timetables?year=two", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableGetAndSlots(t *testing.T) {
	router := newTimetableRouter(&timetableServiceMock{}, adminClaims())

	w := perform(router, http.MethodGet, "/timetables/tt-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, "/timetables/tt-1/slots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].([]interface{})
	require.Len(t, data, 1)

	router = newTimetableRouter(&timetableServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "timetable not found")}, adminClaims())
	w = perform(router, http.MethodGet, "/timetables/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableUpdateSlots(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, adminClaims())

	body := []byte(`{"slots":[{"courseId":"c1","day":"Monday","time":"09:00","roomId":"R1"}]}`)
	w := perform(router, http.MethodPut, "/timetables/tt-1/slots", body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.slotsReq.Slots, 1)
	assert.Equal(t, "admin-1", svc.actor)
}

func TestTimetableUpdateSlotsRejectsOversizedEdit(t *testing.T) {
	slots := make([]dto.SlotInput, maxSlotEdits+1)
	body, err := json.Marshal(dto.UpdateSlotsRequest{Slots: slots})
	require.NoError(t, err)

	router := newTimetableRouter(&timetableServiceMock{}, adminClaims())
	w := perform(router, http.MethodPut, "/timetables/tt-1/slots", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableDeleteAndPublish(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(svc, adminClaims())

	w := perform(router, http.MethodDelete, "/timetables/tt-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tt-1", svc.deleted)

	w = perform(router, http.MethodPost, "/timetables/tt-1/publish", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "PUBLISHED", data["status"])

	conflict := &timetableServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "only draft versions can be deleted")}
	router = newTimetableRouter(conflict, adminClaims())
	w = perform(router, http.MethodDelete, "/timetables/tt-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
