package restserver

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/powdertrack/snowengine/internal/types"
	"github.com/powdertrack/snowengine/pkg/responseformat"
)

// Handlers contains the HTTP request handlers
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates the handler set for a controller
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// conditionsResponse wraps the per-location verdicts for the list endpoint.
type conditionsResponse struct {
	Locations []types.LocationVerdict `json:"locations"`
	Count     int                     `json:"count"`
}

// GetConditions returns the latest verdict for every location.
func (h *Handlers) GetConditions(w http.ResponseWriter, req *http.Request) {
	verdicts := h.controller.results.LatestVerdicts()
	sort.Slice(verdicts, func(i, j int) bool {
		return verdicts[i].LocationID < verdicts[j].LocationID
	})

	resp := conditionsResponse{Locations: verdicts, Count: len(verdicts)}
	if err := h.formatter.WriteResponse(w, req, resp, map[string]string{
		"Cache-Control": "max-age=60",
	}); err != nil {
		h.controller.logger.Errorf("error encoding conditions response: %v", err)
	}
}

// GetLocationConditions returns one location's verdict with site detail.
func (h *Handlers) GetLocationConditions(w http.ResponseWriter, req *http.Request) {
	locationID := mux.Vars(req)["location"]

	verdict, ok := h.controller.results.LatestVerdict(locationID)
	if !ok {
		h.formatter.WriteError(w, req, http.StatusNotFound,
			fmt.Sprintf("no assessment available for location %q", locationID))
		return
	}

	if err := h.formatter.WriteResponse(w, req, verdict, map[string]string{
		"Cache-Control": "max-age=60",
	}); err != nil {
		h.controller.logger.Errorf("error encoding location conditions response: %v", err)
	}
}

// GetStats returns the most recent cycle's outcome counts.
func (h *Handlers) GetStats(w http.ResponseWriter, req *http.Request) {
	stats := h.controller.results.LatestStats()
	if stats.Started.IsZero() {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable,
			"no assessment cycle has completed yet")
		return
	}

	if err := h.formatter.WriteResponse(w, req, stats, map[string]string{
		"Cache-Control": fmt.Sprintf("max-age=%d", int(time.Minute.Seconds())),
	}); err != nil {
		h.controller.logger.Errorf("error encoding stats response: %v", err)
	}
}
