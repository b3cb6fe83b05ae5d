package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/okian/co2charts/pkg/logger"
)

const maxBodyBytes = 1 << 20

// ChartHandler handles chart requests.
type ChartHandler struct {
	deps   ChartGenerator
	logger logger.Logger
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(deps ChartGenerator, log logger.Logger) *ChartHandler {
	return &ChartHandler{deps: deps, logger: log}
}

// HandleChart handles POST /chart requests.
func (h *ChartHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_chart"
	if r.Method != http.MethodPost {
		writeDomainError(r.Context(), w, h.logger, op, NewKind(op, ErrMethodNotAllowed))
		return
	}
	req, err := decodeChartRequest(r)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	payload, err := h.deps.GenerateChart(r.Context(), req)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// decodeChartRequest reads a JSON chart request. Unknown fields are ignored
// and missing flags default to false.
func decodeChartRequest(r *http.Request) (chart.Request, error) {
	var req chart.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return chart.Request{}, fmt.Errorf("empty body")
		}
		return chart.Request{}, fmt.Errorf("invalid json: %w", err)
	}
	return req, nil
}
