package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
)

// MaxBatchSize caps the number of targets in one batch request
const MaxBatchSize = 100

// APIKeyHeader carries a per-request provider key
const APIKeyHeader = "X-API-Key"

// Lookuper resolves IP addresses
// Both service.LookupService and ipgeolocation.Client satisfy it
type Lookuper interface {
	Lookup(ctx context.Context, target, apiKey string) (models.GeolocationResult, error)
	LookupMany(ctx context.Context, targets []string, apiKey string) []models.BatchResult
}

// LookupHandler handles HTTP requests for IP lookups
// This is the handler layer - it deals with HTTP concerns only
//
// Responsibilities:
//   - Parse HTTP requests (query parameters, API key header)
//   - Call the lookup service
//   - Map error kinds to status codes
//   - Format HTTP responses (JSON)
type LookupHandler struct {
	lookups    Lookuper
	defaultKey string
}

// NewLookupHandler creates a handler; defaultKey is used when a request
// carries no X-API-Key header
func NewLookupHandler(lookups Lookuper, defaultKey string) *LookupHandler {
	return &LookupHandler{
		lookups:    lookups,
		defaultKey: defaultKey,
	}
}

// BatchItem is one entry of a batch response
type BatchItem struct {
	Target string                    `json:"target"`
	Result *models.GeolocationResult `json:"result,omitempty"`
	Error  *models.ErrorResponse     `json:"error,omitempty"`
}

// BatchResponse is the body of a batch response
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}

// Lookup handles GET /v1/lookup?ip=<ip>
// A missing or empty ip resolves the gateway's own address
//
// @Summary      Look up an IP address
// @Description  Look up the geolocation of one IP address. Without ip the gateway's own public address is resolved.
// @Tags         IP Lookup
// @Produce      json
// @Param        ip         query   string  false  "IP address (IPv4 or IPv6)"  example(8.8.8.8)
// @Param        X-API-Key  header  string  false  "Provider API key, overrides the configured key"
// @Success      200  {object}  models.GeolocationResult
// @Failure      400  {object}  models.ErrorResponse  "Invalid IP address or missing API key"
// @Failure      429  {object}  models.ErrorResponse  "Rate limit exceeded"
// @Failure      502  {object}  models.ErrorResponse  "Provider failure"
// @Failure      504  {object}  models.ErrorResponse  "Provider timeout"
// @Router       /v1/lookup [get]
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("ip")

	result, err := h.lookups.Lookup(r.Context(), target, h.apiKey(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// Batch handles GET /v1/lookup/batch?ip=<ip>&ip=<ip>
// Per-target failures are reported inline; the response itself is 200
//
// @Summary      Look up several IP addresses
// @Description  Look up several IP addresses. Failures are reported per entry.
// @Tags         IP Lookup
// @Produce      json
// @Param        ip         query   []string  true   "IP addresses, repeated or comma separated (at most 100)"  collectionFormat(multi)
// @Param        X-API-Key  header  string    false  "Provider API key, overrides the configured key"
// @Success      200  {object}  handler.BatchResponse
// @Failure      400  {object}  models.ErrorResponse  "Missing or too many IP addresses"
// @Failure      429  {object}  models.ErrorResponse  "Rate limit exceeded"
// @Router       /v1/lookup/batch [get]
func (h *LookupHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var targets []string
	for _, value := range r.URL.Query()["ip"] {
		// Accept both repeated parameters and comma separated lists
		for _, target := range strings.Split(value, ",") {
			if target = strings.TrimSpace(target); target != "" {
				targets = append(targets, target)
			}
		}
	}

	if len(targets) == 0 {
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error: "Missing 'ip' query parameter",
			Kind:  apierror.InvalidArgument.String(),
		})
		return
	}
	if len(targets) > MaxBatchSize {
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error: "Too many IP addresses in one batch",
			Kind:  apierror.InvalidArgument.String(),
		})
		return
	}

	results := h.lookups.LookupMany(r.Context(), targets, h.apiKey(r))

	resp := BatchResponse{Results: make([]BatchItem, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, NewBatchItem(res))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *LookupHandler) apiKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	return h.defaultKey
}

// StatusFor maps a lookup error to the gateway status code
func StatusFor(err error) int {
	apiErr, ok := apierror.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch apiErr.Kind {
	case apierror.InvalidArgument:
		return http.StatusBadRequest
	case apierror.Network:
		if apiErr.Network == apierror.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case apierror.Service:
		if apiErr.RawStatus == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// NewBatchItem renders one batch result in its wire form
func NewBatchItem(res models.BatchResult) BatchItem {
	item := BatchItem{Target: res.Target, Result: res.Result}
	if res.Err != nil {
		errResp := ErrorResponseFor(res.Err)
		item.Error = &errResp
	}
	return item
}

// ErrorResponseFor renders a lookup error in its wire form
func ErrorResponseFor(err error) models.ErrorResponse {
	apiErr, ok := apierror.As(err)
	if !ok {
		return models.ErrorResponse{Error: "Internal server error"}
	}
	return models.ErrorResponse{
		Error:  apiErr.Message,
		Kind:   apiErr.Kind.String(),
		Status: apiErr.RawStatus,
	}
}

// respondJSON writes a JSON response with the given status code
func (h *LookupHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If encoding fails, we can't change the status code since headers are already sent
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondError writes an error response with consistent formatting
func (h *LookupHandler) respondError(w http.ResponseWriter, err error) {
	h.respondJSON(w, StatusFor(err), ErrorResponseFor(err))
}
