package api

import (
	"net/http"

	"github.com/okian/co2charts/pkg/logger"
)

// DirectoryHandler serves the country and year directories.
type DirectoryHandler struct {
	deps   DirectoryProvider
	logger logger.Logger
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(deps DirectoryProvider, log logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{deps: deps, logger: log}
}

// HandleCountries handles GET /countries requests.
func (h *DirectoryHandler) HandleCountries(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_countries"
	if r.Method != http.MethodGet {
		writeDomainError(r.Context(), w, h.logger, op, NewKind(op, ErrMethodNotAllowed))
		return
	}
	countries, err := h.deps.ListCountries(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, countries)
}

// HandleYears handles GET /years requests.
func (h *DirectoryHandler) HandleYears(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_years"
	if r.Method != http.MethodGet {
		writeDomainError(r.Context(), w, h.logger, op, NewKind(op, ErrMethodNotAllowed))
		return
	}
	years, err := h.deps.ListYears(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, years)
}
