package handlers_test

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

	"github.com/xiongtingping/wenpai-sub001/internal/handlers"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/models/dto"
	"github.com/xiongtingping/wenpai-sub001/internal/monitor"
	"github.com/xiongtingping/wenpai-sub001/internal/recovery"
	"github.com/xiongtingping/wenpai-sub001/internal/service"
)

type fakeService struct {
	startFn          func(ctx context.Context, req *dto.StartMonitor) (models.StatusRecord, error)
	refreshFn        func(checkoutID string) error
	pauseFn          func(checkoutID string) error
	resumeFn         func(checkoutID string) error
	stopFn           func(checkoutID string) error
	discardFn        func(ctx context.Context, checkoutID string) error
	getFn            func(ctx context.Context, checkoutID string) (models.StatusRecord, error)
	recoverFn        func(ctx context.Context) ([]recovery.Resumable, error)
	checkAllFn       func(ctx context.Context) (map[string]recovery.CheckResult, error)
	checkoutCreated  func(ctx context.Context, event models.CheckoutCreatedEvent) error
	createdEventArgs []models.CheckoutCreatedEvent
}

func (f *fakeService) StartMonitor(ctx context.Context, req *dto.StartMonitor) (models.StatusRecord, error) {
	return f.startFn(ctx, req)
}

func (f *fakeService) RefreshNow(checkoutID string) error { return f.refreshFn(checkoutID) }
func (f *fakeService) Pause(checkoutID string) error      { return f.pauseFn(checkoutID) }
func (f *fakeService) Resume(checkoutID string) error     { return f.resumeFn(checkoutID) }
func (f *fakeService) StopMonitor(checkoutID string) error {
	return f.stopFn(checkoutID)
}

func (f *fakeService) Discard(ctx context.Context, checkoutID string) error {
	return f.discardFn(ctx, checkoutID)
}

func (f *fakeService) GetRecord(ctx context.Context, checkoutID string) (models.StatusRecord, error) {
	return f.getFn(ctx, checkoutID)
}

func (f *fakeService) RecoverActive(ctx context.Context) ([]recovery.Resumable, error) {
	return f.recoverFn(ctx)
}

func (f *fakeService) CheckAllActive(ctx context.Context) (map[string]recovery.CheckResult, error) {
	return f.checkAllFn(ctx)
}

func (f *fakeService) HandleCheckoutCreated(ctx context.Context, event models.CheckoutCreatedEvent) error {
	f.createdEventArgs = append(f.createdEventArgs, event)
	if f.checkoutCreated != nil {
		return f.checkoutCreated(ctx, event)
	}
	return nil
}

func setupRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewMonitorHandler(svc)
	router := gin.New()
	group := router.Group("/monitors")
	group.POST("", h.StartMonitor)
	group.GET("", h.RecoverActive)
	group.POST("/check-all", h.CheckAll)
	group.GET("/:id", h.GetRecord)
	group.POST("/:id/refresh", h.RefreshNow)
	group.POST("/:id/pause", h.Pause)
	group.POST("/:id/resume", h.Resume)
	group.POST("/:id/stop", h.Stop)
	group.DELETE("/:id", h.Discard)
	return router
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartMonitor_Created(t *testing.T) {
	svc := &fakeService{
		startFn: func(_ context.Context, req *dto.StartMonitor) (models.StatusRecord, error) {
			return models.StatusRecord{CheckoutID: req.CheckoutID, State: models.StatePending}, nil
		},
	}
	router := setupRouter(svc)

	body, _ := json.Marshal(dto.StartMonitor{CheckoutID: "chk_1"})
	w := perform(router, http.MethodPost, "/monitors", body)

	require.Equal(t, http.StatusCreated, w.Code)
	var record models.StatusRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "chk_1", record.CheckoutID)
	assert.Equal(t, models.StatePending, record.State)
}

func TestStartMonitor_InvalidBody(t *testing.T) {
	svc := &fakeService{}
	router := setupRouter(svc)

	w := perform(router, http.MethodPost, "/monitors", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartMonitor_ConflictWhenAlreadyTracked(t *testing.T) {
	svc := &fakeService{
		startFn: func(_ context.Context, _ *dto.StartMonitor) (models.StatusRecord, error) {
			return models.StatusRecord{}, monitor.ErrAlreadyTracked
		},
	}
	router := setupRouter(svc)

	body, _ := json.Marshal(dto.StartMonitor{CheckoutID: "chk_1"})
	w := perform(router, http.MethodPost, "/monitors", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetRecord_NotFound(t *testing.T) {
	svc := &fakeService{
		getFn: func(_ context.Context, _ string) (models.StatusRecord, error) {
			return models.StatusRecord{}, service.ErrUnknownCheckout
		},
	}
	router := setupRouter(svc)

	w := perform(router, http.MethodGet, "/monitors/chk_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshNow_ConflictWhilePaused(t *testing.T) {
	svc := &fakeService{
		refreshFn: func(_ string) error { return monitor.ErrPaused },
	}
	router := setupRouter(svc)

	w := perform(router, http.MethodPost, "/monitors/chk_1/refresh", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLifecycleActions(t *testing.T) {
	var got []string
	svc := &fakeService{
		pauseFn:  func(id string) error { got = append(got, "pause:"+id); return nil },
		resumeFn: func(id string) error { got = append(got, "resume:"+id); return nil },
		stopFn:   func(id string) error { got = append(got, "stop:"+id); return nil },
	}
	router := setupRouter(svc)

	for _, action := range []string{"pause", "resume", "stop"} {
		w := perform(router, http.MethodPost, "/monitors/chk_1/"+action, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, []string{"pause:chk_1", "resume:chk_1", "stop:chk_1"}, got)
}

func TestLifecycleAction_NotFound(t *testing.T) {
	svc := &fakeService{
		pauseFn: func(_ string) error { return service.ErrUnknownCheckout },
	}
	router := setupRouter(svc)

	w := perform(router, http.MethodPost, "/monitors/chk_x/pause", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscard_OK(t *testing.T) {
	var discarded string
	svc := &fakeService{
		discardFn: func(_ context.Context, id string) error { discarded = id; return nil },
	}
	router := setupRouter(svc)

	w := perform(router, http.MethodDelete, "/monitors/chk_1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chk_1", discarded)
}

func TestRecoverActive_ListsResumables(t *testing.T) {
	svc := &fakeService{
		recoverFn: func(_ context.Context) ([]recovery.Resumable, error) {
			return []recovery.Resumable{
				{Record: models.StatusRecord{CheckoutID: "chk_1", State: models.StatePending}},
			}, nil
		},
	}
	router := setupRouter(svc)

	w := perform(router, http.MethodGet, "/monitors", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Active []recovery.Resumable `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Active, 1)
	assert.Equal(t, "chk_1", resp.Active[0].Record.CheckoutID)
}

func TestCheckAll_ReturnsResults(t *testing.T) {
	svc := &fakeService{
		checkAllFn: func(_ context.Context) (map[string]recovery.CheckResult, error) {
			return map[string]recovery.CheckResult{
				"chk_1": {CheckoutID: "chk_1", RawStatus: "paid", State: models.StatePaid},
			}, nil
		},
	}
	router := setupRouter(svc)

	w := perform(router, http.MethodPost, "/monitors/check-all", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results map[string]recovery.CheckResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatePaid, resp.Results["chk_1"].State)
}

func TestHandleEvents_CheckoutCreated(t *testing.T) {
	svc := &fakeService{}
	h := handlers.NewMonitorHandler(svc)

	payload, _ := json.Marshal(models.CheckoutCreatedEvent{CheckoutID: "chk_evt"})
	require.NoError(t, h.HandleEvents(context.Background(), models.CheckoutCreatedTopic2Subscribe, payload))
	require.Len(t, svc.createdEventArgs, 1)
	assert.Equal(t, "chk_evt", svc.createdEventArgs[0].CheckoutID)
}

func TestHandleEvents_RejectsUnknownTopicAndBadPayload(t *testing.T) {
	svc := &fakeService{}
	h := handlers.NewMonitorHandler(svc)

	assert.Error(t, h.HandleEvents(context.Background(), "some.other.topic", []byte("{}")))
	assert.Error(t, h.HandleEvents(context.Background(), models.CheckoutCreatedTopic2Subscribe, []byte("{not json")))
	assert.Error(t, h.HandleEvents(context.Background(), models.CheckoutCreatedTopic2Subscribe, []byte(`{"checkout_id":""}`)))
}
