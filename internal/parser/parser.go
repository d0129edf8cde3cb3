// Package parser decodes provider payloads into GeolocationResults.
//
// The provider speaks the ip-api.com JSON format:
//
//	{"status":"success","query":"8.8.8.8","countryCode":"US","country":"United States",
//	 "regionName":"California","city":"Mountain View","lat":37.4,"lon":-122.1,
//	 "timezone":"America/Los_Angeles","isp":"Google LLC"}
package parser

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
)

// Fields is the ip-api "fields" selector matching what Parse reads
const Fields = "status,message,query,countryCode,country,regionName,city,lat,lon,timezone,isp"

const statusFail = "fail"

// payload mirrors the provider response
// Every field is a pointer so that "absent" can be told apart from a zero value
type payload struct {
	Status      *string  `json:"status"`
	Message     *string  `json:"message"`
	Query       *string  `json:"query"`
	CountryCode *string  `json:"countryCode"`
	Country     *string  `json:"country"`
	RegionName  *string  `json:"regionName"`
	City        *string  `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Timezone    *string  `json:"timezone"`
	ISP         *string  `json:"isp"`
}

// Parse decodes a successful (2xx) provider body
//
// Returns:
//   - models.GeolocationResult: the decoded record
//   - error: ParseError for malformed or incomplete payloads,
//     ServiceError when the provider reports status "fail"
func Parse(body []byte) (models.GeolocationResult, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.GeolocationResult{}, apierror.NewParse("malformed provider payload", err)
	}

	if p.Status != nil && strings.EqualFold(*p.Status, statusFail) {
		message := "lookup failed"
		if p.Message != nil && *p.Message != "" {
			message = *p.Message
		}
		return models.GeolocationResult{}, apierror.NewService(http.StatusOK, message)
	}

	// Required fields
	switch {
	case isBlank(p.Query):
		return models.GeolocationResult{}, missing("query")
	case isBlank(p.CountryCode):
		return models.GeolocationResult{}, missing("countryCode")
	case isBlank(p.Country):
		return models.GeolocationResult{}, missing("country")
	case p.Lat == nil:
		return models.GeolocationResult{}, missing("lat")
	case p.Lon == nil:
		return models.GeolocationResult{}, missing("lon")
	}

	if *p.Lat < -90 || *p.Lat > 90 {
		return models.GeolocationResult{}, apierror.NewParse(fmt.Sprintf("latitude %v out of range", *p.Lat), nil)
	}
	if *p.Lon < -180 || *p.Lon > 180 {
		return models.GeolocationResult{}, apierror.NewParse(fmt.Sprintf("longitude %v out of range", *p.Lon), nil)
	}

	return models.GeolocationResult{
		IP:          *p.Query,
		CountryCode: *p.CountryCode,
		CountryName: *p.Country,
		Region:      optional(p.RegionName),
		City:        optional(p.City),
		Latitude:    *p.Lat,
		Longitude:   *p.Lon,
		Timezone:    optional(p.Timezone),
		ISP:         optional(p.ISP),
	}, nil
}

// ErrorMessage extracts the provider "message" field from a failure body
// Returns an empty string when the body carries none
func ErrorMessage(body []byte) string {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil || p.Message == nil {
		return ""
	}
	return strings.TrimSpace(*p.Message)
}

func missing(field string) error {
	return apierror.NewParse("missing required field "+field, nil)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// optional maps absent and empty provider values to nil
func optional(s *string) *string {
	if isBlank(s) {
		return nil
	}
	v := *s
	return &v
}
