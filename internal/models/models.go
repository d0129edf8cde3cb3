package models

// LookupRequest is a validated request to resolve one IP address
// Only the request builder constructs it, so APIKey is always non-empty
// and Target is either empty or a valid IPv4/IPv6 literal
type LookupRequest struct {
	Target string // IP to resolve; empty means "the caller's own address"
	APIKey string // Provider credential
}

// IsSelf reports whether the request asks for the caller's own address
func (r LookupRequest) IsSelf() bool {
	return r.Target == ""
}

// GeolocationResult is the location data the provider returned for an IP
// It is returned by value, so every caller owns an independent copy
//
// Optional fields are pointers; nil means the provider sent nothing usable
type GeolocationResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Region      *string `json:"region,omitempty"`
	City        *string `json:"city,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    *string `json:"timezone,omitempty"`
	ISP         *string `json:"isp,omitempty"`
}

// Clone returns a deep copy
func (g GeolocationResult) Clone() GeolocationResult {
	out := g
	out.Region = cloneString(g.Region)
	out.City = cloneString(g.City)
	out.Timezone = cloneString(g.Timezone)
	out.ISP = cloneString(g.ISP)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// BatchResult is one entry of a batch lookup
// Exactly one of Result and Err is set
type BatchResult struct {
	Target string             `json:"target"`
	Result *GeolocationResult `json:"result,omitempty"`
	Err    error              `json:"-"`
}

// ErrorResponse is the standard error response format of the gateway
type ErrorResponse struct {
	Error  string `json:"error"`            // Error message
	Kind   string `json:"kind,omitempty"`   // Error kind (invalid_argument, network, service, parse)
	Status int    `json:"status,omitempty"` // Provider status, when the provider answered
}
