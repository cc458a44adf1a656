package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldchecker/internal/gold"
)

func newTestClient(baseURL string) *Client {
	return NewClient(
		WithBaseURL(baseURL),
		WithContentURL(baseURL+"/api"),
		WithAPIKey("secret"),
		WithTimeout(time.Second),
		WithRateLimit(1000),
	)
}

func testSnapshot(t *testing.T) gold.Snapshot {
	t.Helper()
	snap, err := gold.NewSnapshot(time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC), "2026-05-10", gold.SourceDCOG, map[gold.Karat]decimal.Decimal{
		gold.K24: decimal.RequireFromString("589.50"),
		gold.K22: decimal.RequireFromString("545.75"),
		gold.K21: decimal.RequireFromString("523.25"),
		gold.K18: decimal.RequireFromString("448.50"),
	})
	require.NoError(t, err)
	return snap
}

func TestPushRates(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ingestPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":17,"status":"stored"}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL).PushRates(context.Background(), NewIngestRequest(testSnapshot(t), "scheduled"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":17,"status":"stored"}`, string(raw))

	assert.Equal(t, gold.SourceDCOG, got["source"])
	assert.Equal(t, "scheduled", got["notes"])
	assert.Equal(t, 589.5, got["k24"])
	assert.Equal(t, 448.5, got["k18"])
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"validation_failed","message":"k24 must be positive","details":{"k24":["must be positive"]}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PushRates(context.Background(), NewIngestRequest(testSnapshot(t), ""))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Equal(t, []string{"must be positive"}, apiErr.Details["k24"])
}

func TestAPIErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TodayVsYesterday(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestTodayVsYesterday(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, comparisonPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "reads must not carry the api key")
		_, _ = w.Write([]byte(`{
			"today": {"date":"2026-05-10","capturedAt":"2026-05-10T06:00:00Z","source":"Dubai City of Gold",
				"rates":{"k24":600,"k22":549.6,"k21":525,"k18":450}},
			"yesterday": {"date":"09-05-2026","rates":{"k24":594,"k22":550,"k21":527.5,"k18":452}}
		}`))
	}))
	defer srv.Close()

	cmp, err := newTestClient(srv.URL).TodayVsYesterday(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cmp.Yesterday)

	today, err := cmp.Today.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "2026-05-10", today.BusinessDate)
	assert.Equal(t, gold.SourceBackend, today.Source)
	r22, _ := today.Rate(gold.K22)
	assert.True(t, r22.Equal(decimal.RequireFromString("549.6")))

	yesterday, err := cmp.Yesterday.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "2026-05-09", yesterday.BusinessDate)
}

func TestTodayVsYesterdayRequiresToday(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"yesterday":null}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TodayVsYesterday(context.Background())
	assert.Error(t, err)
}

func TestDayRatesRejectsInvalidRates(t *testing.T) {
	zero := decimal.Zero
	day := DayRates{Date: "2026-05-10", Rates: Rates{K24: &zero}}
	_, err := day.Snapshot()
	assert.ErrorIs(t, err, gold.ErrInvalidSnapshot)
}

func TestChartQueryEncoding(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"period":"7d","karat":"24","totalDays":1,"data":[{"date":"2026-05-10","rates":{"k24":600}}]}`))
	}))
	defer srv.Close()

	data, err := newTestClient(srv.URL).Chart(context.Background(), ChartQuery{Karat: "24", Period: "7d"})
	require.NoError(t, err)
	assert.Equal(t, "24", query.Get("karat"))
	assert.Equal(t, "7d", query.Get("period"))
	assert.False(t, query.Has("from"))
	require.Len(t, data.Data, 1)
	assert.Equal(t, 1, data.TotalDays)
}

func TestBlogPostsFallsBackAcrossCasings(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/api/blog" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"data":[{"slug":"gold-101"}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).BlogPosts(context.Background(), url.Values{"page": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", res.ContentType)
	assert.JSONEq(t, `{"data":[{"slug":"gold-101"}]}`, string(res.Body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestBlogPostAllMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).BlogPost(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBlogPostRequiresSlug(t *testing.T) {
	_, err := NewClient().BlogPost(context.Background(), "  ")
	assert.Error(t, err)
}

func TestBlogPostsUnreachable(t *testing.T) {
	c := NewClient(WithContentURL("http://127.0.0.1:1/api"), WithTimeout(200*time.Millisecond))
	_, err := c.BlogPosts(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoContent)
}
