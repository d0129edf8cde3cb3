package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/evyataryagoni/ipgeolocation"
	"github.com/evyataryagoni/ipgeolocation/internal/handler"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/evyataryagoni/ipgeolocation/internal/providertest"
	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// clearEnv keeps the ambient environment out of the tests
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"IPGEO_API_KEY", "IPGEO_BASE_URL", "IPGEO_TIMEOUT", "IPGEO_MAX_RETRIES", "CACHE_TYPE", "RATE_LIMITER_TYPE"} {
		t.Setenv(key, "")
	}
}

// TestVersionCmd tests the version command
func TestVersionCmd(t *testing.T) {
	output, err := executeCommand(NewCLI(), "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "ipgeo version: "+ipgeolocation.Version) {
		t.Errorf("unexpected output: %s", output)
	}

	if _, err := executeCommand(NewCLI(), "version", "extra"); err == nil {
		t.Error("expected error for extra arguments")
	}
}

// TestLookupCmd_Single tests a single lookup
func TestLookupCmd_Single(t *testing.T) {
	clearEnv(t)
	srv := providertest.New()
	defer srv.Close()

	output, err := executeCommand(NewCLI(), "lookup", "8.8.8.8", "--key", providertest.APIKey, "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result models.GeolocationResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to decode output %q: %v", output, err)
	}
	if result.IP != "8.8.8.8" || result.CountryCode != "US" {
		t.Errorf("unexpected result: %+v", result)
	}
}

// TestLookupCmd_Self tests a lookup without arguments
func TestLookupCmd_Self(t *testing.T) {
	clearEnv(t)
	srv := providertest.New()
	defer srv.Close()
	t.Setenv("IPGEO_API_KEY", providertest.APIKey)
	t.Setenv("IPGEO_BASE_URL", srv.URL)

	output, err := executeCommand(NewCLI(), "lookup", "--compact")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"ip":"`+providertest.SelfIP+`"`) {
		t.Errorf("expected own address in output, got %s", output)
	}
	if calls := srv.Calls(); len(calls) != 1 || calls[0] != "" {
		t.Errorf("expected one self lookup, got %v", calls)
	}
}

// TestLookupCmd_Many tests a batch lookup with a failing entry
func TestLookupCmd_Many(t *testing.T) {
	clearEnv(t)
	srv := providertest.New()
	defer srv.Close()

	output, err := executeCommand(NewCLI(), "lookup", "8.8.8.8", "not-an-ip", "1.1.1.1",
		"--key", providertest.APIKey, "--base-url", srv.URL)

	if err == nil || !strings.Contains(err.Error(), "1 of 3 lookups failed") {
		t.Errorf("expected partial failure error, got %v", err)
	}

	var resp handler.BatchResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		t.Fatalf("failed to decode output %q: %v", output, err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[1].Error == nil || resp.Results[1].Error.Kind != "invalid_argument" {
		t.Errorf("expected invalid_argument for not-an-ip, got %+v", resp.Results[1])
	}
	if resp.Results[2].Result == nil || resp.Results[2].Result.CountryCode != "AU" {
		t.Errorf("expected AU for 1.1.1.1, got %+v", resp.Results[2])
	}
}

// TestLookupCmd_Many_ServiceError tests that provider failures keep their status in batch output
func TestLookupCmd_Many_ServiceError(t *testing.T) {
	clearEnv(t)
	srv := providertest.New()
	defer srv.Close()
	srv.SetStatus(http.StatusForbidden, "")

	output, err := executeCommand(NewCLI(), "lookup", "8.8.8.8", "1.1.1.1",
		"--key", providertest.APIKey, "--base-url", srv.URL)

	if err == nil || !strings.Contains(err.Error(), "2 of 2 lookups failed") {
		t.Errorf("expected batch failure error, got %v", err)
	}

	var resp handler.BatchResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		t.Fatalf("failed to decode output %q: %v", output, err)
	}
	for _, item := range resp.Results {
		if item.Error == nil || item.Error.Kind != "service" || item.Error.Status != http.StatusForbidden {
			t.Errorf("expected service error with status 403 for %s, got %+v", item.Target, item.Error)
		}
	}
}

// TestLookupCmd_Errors tests failures surfaced as command errors
func TestLookupCmd_Errors(t *testing.T) {
	clearEnv(t)
	srv := providertest.New()
	defer srv.Close()

	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"missing key", []string{"lookup", "8.8.8.8", "--base-url", srv.URL}, ipgeolocation.ErrInvalidArgument},
		{"invalid ip", []string{"lookup", "999.1.1.1", "--key", providertest.APIKey, "--base-url", srv.URL}, ipgeolocation.ErrInvalidArgument},
		{"wrong key", []string{"lookup", "8.8.8.8", "--key", "nope", "--base-url", srv.URL}, ipgeolocation.ErrService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(NewCLI(), tt.args...)
			if !errors.Is(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

// TestLookupCmd_InvalidBaseURL tests client construction errors
func TestLookupCmd_InvalidBaseURL(t *testing.T) {
	clearEnv(t)

	_, err := executeCommand(NewCLI(), "lookup", "8.8.8.8", "--key", "k", "--base-url", "ftp://example.com")
	if err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
