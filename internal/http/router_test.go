package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/observations"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/testutil"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	httpH "github.com/uw-ssec/ca-biositing-sub000/internal/http/handlers"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

type fakeRefresher struct {
	order []string
	err   error
}

func (f *fakeRefresher) State(context.Context) ([]views.RefreshState, error) {
	return []views.RefreshState{{ViewName: views.CensusView, RowCount: 3, ObservationWatermark: 9}}, nil
}

func (f *fakeRefresher) RefreshAll(ctx context.Context) ([]views.RefreshResult, error) {
	return f.RefreshOrder(ctx, []string{views.CensusView})
}

func (f *fakeRefresher) RefreshOrder(_ context.Context, names []string) ([]views.RefreshResult, error) {
	f.order = names
	if f.err != nil {
		return nil, f.err
	}
	out := make([]views.RefreshResult, 0, len(names))
	for _, n := range names {
		out = append(out, views.RefreshResult{View: n})
	}
	return out, nil
}

type pingFunc func() error

func (p pingFunc) Ping() error { return p() }

func newTestRouter(t *testing.T, ref *fakeRefresher, ready error) (*gin.Engine, repos.Repos) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := testutil.DB(t)
	r := repos.New(gdb, testutil.Logger(t))
	return NewRouter(RouterConfig{
		Log:           testutil.Logger(t),
		Metrics:       observability.NewMetrics(),
		HealthHandler: httpH.NewHealthHandler(map[string]httpH.Pinger{"db": pingFunc(func() error { return ready })}),
		ViewHandler:   httpH.NewViewHandler(ref),
		RecordHandler: httpH.NewRecordHandler(observations.NewParentResolver(r.Parents), r.Parents, r.Runs),
	}), r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndReadiness(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRefresher{}, nil)
	w := do(router, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = do(router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	down, _ := newTestRouter(t, &fakeRefresher{}, errors.New("connection refused"))
	w = do(down, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "db_unavailable")
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRefresher{}, nil)
	do(router, http.MethodGet, "/healthcheck", "")
	w := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/healthcheck"`)
}

func TestRefreshViews(t *testing.T) {
	ref := &fakeRefresher{}
	router, _ := newTestRouter(t, ref, nil)

	w := do(router, http.MethodPost, "/api/views/refresh", `{"views":["lab_analysis_observation_view"," lab_analysis_summary_view "]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{views.LabView, views.LabSummaryView}, ref.order)

	w = do(router, http.MethodPost, "/api/views/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{views.CensusView}, ref.order)

	ref.err = errors.Join(views.ErrViewDependency, errors.New("lab view is stale"))
	w = do(router, http.MethodPost, "/api/views/refresh", `{"views":["lab_analysis_summary_view"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, "/api/views/refresh", `{"views":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/views", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Views []views.RefreshState `json:"views"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Views, 1)
	assert.Equal(t, int64(9), body.Views[0].ObservationWatermark)
}

func TestRecordLookups(t *testing.T) {
	router, r := newTestRouter(t, &fakeRefresher{}, nil)
	ctx := context.Background()
	older := &types.CensusRecord{GeographyID: testutil.GeoFresno, Period: 2017, CommodityCode: testutil.CommodityRice}
	newer := &types.CensusRecord{GeographyID: testutil.GeoFresno, Period: 2022, CommodityCode: testutil.CommodityRice}
	n, err := r.Parents.InsertIgnore(dbctx.New(ctx), types.ParentCensus, []types.CensusRecord{*older, *newer}, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	w := do(router, http.MethodGet, "/api/records/census/latest?geography_id=06019&commodity_code=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got struct {
		Record types.ParentHandle `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Record.Period)
	assert.Equal(t, 2022, *got.Record.Period)

	w = do(router, http.MethodGet, "/api/records/CENSUS/"+got.Record.Reference, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/records/census/latest?geography_id=06019", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/records/census/99999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/api/records/proximate/latest?geography_id=06019&commodity_code=2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/records/bogus/1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{
		Log:           testutil.Logger(t),
		CORSOrigins:   []string{"http://dash.local"},
		HealthHandler: httpH.NewHealthHandler(nil),
	})
	req := httptest.NewRequest(http.MethodOptions, "/healthcheck", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://dash.local", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(router, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
