package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"goldchecker/internal/gold"
	"goldchecker/internal/report"
	"goldchecker/internal/service"
)

// handleGoldPrices handles GET /api/gold-prices. It always answers 200; a
// degraded snapshot carries its notice in the error field.
func (s *Server) handleGoldPrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	noStore(w)
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	res := s.rates.LiveSnapshot(r.Context())
	WriteJSON(w, http.StatusOK, newGoldPricesView(res.Snapshot, res.Notice))
}

// handleTodayVsYesterday handles GET /api/gold/today-vs-yesterday.
func (s *Server) handleTodayVsYesterday(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	noStore(w)

	cmp := s.rates.TodayVsYesterday(r.Context())
	WriteJSON(w, http.StatusOK, comparisonView{
		Today:     newDayView(cmp.Today, gold.ProviderKarats),
		Yesterday: newDayView(cmp.Yesterday, gold.ProviderKarats),
		Changes:   newChangesView(cmp.Changes),
		Degraded:  cmp.Degraded,
		Notice:    cmp.Notice,
	})
}

func chartQueryFrom(r *http.Request) service.ChartQuery {
	q := r.URL.Query()
	return service.ChartQuery{
		Karat:  q.Get("karat"),
		Period: q.Get("period"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
}

// handleChartData handles GET /api/gold/chart-data.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	noStore(w)

	series, ok := s.chartSeries(w, r)
	if !ok {
		return
	}

	karats := series.Query.Karats()
	data := make([]dayView, 0, len(series.Points))
	for _, p := range series.Points {
		data = append(data, newDayView(p, karats))
	}
	WriteJSON(w, http.StatusOK, chartView{
		Period:    series.Query.Period,
		From:      series.From,
		To:        series.To,
		Karat:     series.Query.Karat,
		TotalDays: len(data),
		Source:    series.Source,
		Degraded:  series.Degraded,
		Data:      data,
	})
}

// handleChartPNG handles GET /api/gold/chart.png.
func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	series, ok := s.chartSeries(w, r)
	if !ok {
		return
	}

	opts := report.PNGOptions{Title: "Gold price (" + gold.Currency + "/g)"}
	if v, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && v > 0 && v <= 4096 {
		opts.Width = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("height")); err == nil && v > 0 && v <= 4096 {
		opts.Height = v
	}

	var buf bytes.Buffer
	if err := report.WritePNG(&buf, series.Points, series.Query.Karats(), opts); err != nil {
		s.logger.Error().Err(err).Str("query", series.Query.Key()).Msg("chart render failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, "Chart rendering failed", "render")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) chartSeries(w http.ResponseWriter, r *http.Request) (service.Series, bool) {
	series, err := s.rates.ChartSeries(r.Context(), chartQueryFrom(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuery) {
			WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_query")
			return service.Series{}, false
		}
		s.logger.Error().Err(err).Msg("chart series failed")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return service.Series{}, false
	}
	return series, true
}
