package v1

import (
	"github.com/evyataryagoni/ipgeolocation/internal/handler"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes configures all v1 API routes
// This function is called by the main router to setup /v1/* endpoints
func SetupRoutes(lookupHandler *handler.LookupHandler) chi.Router {
	r := chi.NewRouter()

	// GET /v1/lookup?ip=<ip>
	r.Get("/lookup", lookupHandler.Lookup)

	// GET /v1/lookup/batch?ip=<ip>&ip=<ip>
	r.Get("/lookup/batch", lookupHandler.Batch)

	return r
}
