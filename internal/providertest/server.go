// Package providertest runs a fake geolocation provider for tests.
//
// It speaks the same JSON dialect as the real provider, so the transport,
// the client facade and the gateway can be exercised end to end:
//
//	srv := providertest.New()
//	defer srv.Close()
//	client, _ := ipgeolocation.New(ipgeolocation.WithBaseURL(srv.URL))
package providertest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// APIKey is the only key the fake provider accepts
const APIKey = "test-key"

// SelfIP is the address reported for self lookups
const SelfIP = "203.0.113.7"

// Record bodies for the default data set
const (
	GoogleDNS     = `{"status":"success","query":"8.8.8.8","countryCode":"US","country":"United States","regionName":"California","city":"Mountain View","lat":37.4,"lon":-122.1,"timezone":"America/Los_Angeles","isp":"Google LLC"}`
	CloudflareDNS = `{"status":"success","query":"1.1.1.1","countryCode":"AU","country":"Australia","regionName":"New South Wales","city":"Sydney","lat":-33.87,"lon":151.21,"timezone":"Australia/Sydney","isp":"Cloudflare, Inc"}`
	GoogleDNSv6   = `{"status":"success","query":"2001:4860:4860::8888","countryCode":"US","country":"United States","lat":37.751,"lon":-97.822,"isp":"Google LLC"}`
	Self          = `{"status":"success","query":"203.0.113.7","countryCode":"NL","country":"Netherlands","city":"Amsterdam","lat":52.37,"lon":4.89,"timezone":"Europe/Amsterdam"}`
)

// Server is a fake provider backed by httptest
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	records    map[string]string
	delay      time.Duration
	status     int
	statusBody string
	calls      []string
}

// New starts a fake provider pre-populated with common test IPs
func New() *Server {
	s := &Server{
		records: map[string]string{
			"8.8.8.8":              GoogleDNS,
			"1.1.1.1":              CloudflareDNS,
			"2001:4860:4860::8888": GoogleDNSv6,
			"":                     Self,
		},
	}

	r := chi.NewRouter()
	r.Get("/json/", s.lookup)
	r.Get("/json/{ip}", s.lookup)

	s.Server = httptest.NewServer(r)
	return s
}

// SetRecord sets the raw JSON body returned for ip
// Use an empty ip for the self lookup answer
func (s *Server) SetRecord(ip, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ip] = body
}

// SetDelay makes every answer wait d (or until the client gives up)
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetStatus forces every answer to the given status and body
// A zero status restores normal behavior
func (s *Server) SetStatus(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.statusBody = body
}

// Calls returns the targets requested so far, in arrival order
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	s.mu.Lock()
	s.calls = append(s.calls, ip)
	delay := s.delay
	status, statusBody := s.status, s.statusBody
	body, found := s.records[ip]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("key") != APIKey {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"status":"fail","message":"invalid API key"}`)
		return
	}

	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprint(w, statusBody)
		return
	}

	if !found {
		// The real provider answers 200 with status "fail" for unroutable input
		fmt.Fprintf(w, `{"status":"fail","message":"reserved range","query":%q}`, ip)
		return
	}

	fmt.Fprint(w, body)
}
