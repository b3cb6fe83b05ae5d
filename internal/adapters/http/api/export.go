package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/okian/co2charts/internal/adapters/export"
	"github.com/okian/co2charts/pkg/logger"
)

// ExportHandler renders chart payloads as files.
type ExportHandler struct {
	deps   ChartGenerator
	logger logger.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ChartGenerator, log logger.Logger) *ExportHandler {
	return &ExportHandler{deps: deps, logger: log}
}

// HandleExport handles POST /api/chart/export?format=png|xlsx requests.
// The body is the same as for /chart.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_chart"
	if r.Method != http.MethodPost {
		writeDomainError(r.Context(), w, h.logger, op, NewKind(op, ErrMethodNotAllowed))
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, op, WrapKind(op, ErrBadRequest, err))
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

	var buf bytes.Buffer
	if err := export.Write(&buf, format, payload); err != nil {
		writeDomainError(r.Context(), w, h.logger, op, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
