package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"goldchecker/internal/calculator"
)

// flexText accepts a JSON string or number and keeps its text form.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexText(n.String())
	return nil
}

type calculatorRequest struct {
	Karat     flexText `json:"karat"`
	Weight    flexText `json:"weight"`
	ShopPrice flexText `json:"shopPrice"`
}

type calculatorView struct {
	Karat             string  `json:"karat"`
	Weight            float64 `json:"weight"`
	ShopPrice         float64 `json:"shopPrice"`
	MarketRate        float64 `json:"marketRate"`
	OfficialGoldValue float64 `json:"officialGoldValue"`
	TotalProfitAmount float64 `json:"totalProfitAmount"`
	ShopProfitPerGram float64 `json:"shopProfitPerGram"`
	MarginPercentage  float64 `json:"marginPercentage"`
	MarginStatus      string  `json:"marginStatus"`
	RateDate          string  `json:"rateDate"`
	RateSource        string  `json:"rateSource"`
	Notice            string  `json:"notice,omitempty"`
}

// handleCalculator handles POST /api/calculator. The market rate always
// comes from the current authoritative snapshot.
func (s *Server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	noStore(w)

	var req calculatorRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	live := s.rates.LiveSnapshot(r.Context())
	in, err := calculator.ParseInput(string(req.Karat), string(req.Weight), string(req.ShopPrice), live.Snapshot)
	if err == nil {
		var res calculator.Result
		if res, err = calculator.Calculate(in); err == nil {
			res = res.Rounded()
			WriteJSON(w, http.StatusOK, calculatorView{
				Karat:             res.Karat.Label(),
				Weight:            res.Weight.InexactFloat64(),
				ShopPrice:         res.ShopPrice.InexactFloat64(),
				MarketRate:        res.MarketRate.InexactFloat64(),
				OfficialGoldValue: res.OfficialGoldValue.InexactFloat64(),
				TotalProfitAmount: res.TotalProfit.InexactFloat64(),
				ShopProfitPerGram: res.ProfitPerGram.InexactFloat64(),
				MarginPercentage:  res.MarginPercentage.InexactFloat64(),
				MarginStatus:      string(res.Status),
				RateDate:          live.Snapshot.BusinessDate,
				RateSource:        live.Snapshot.Source,
				Notice:            live.Notice,
			})
			return
		}
	}

	var verr *calculator.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Error(), Code: "validation", Field: verr.Field})
		return
	}
	s.logger.Error().Err(err).Msg("calculation failed")
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}
