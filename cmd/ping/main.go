// Command ping probes the fido server's /healthz endpoint and exits non-zero
// when the server or its note store is unhealthy.
//
// Intended for Docker HEALTHCHECK:
//
//	HEALTHCHECK CMD ["/ping"]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort    = 8080
	healthEndpoint = "/healthz"
	statusOK       = "ok"
)

// Exit codes, one per failure class so orchestrator logs tell them apart.
const (
	codeRequestFailed     = 2
	codeBadHTTPStatus     = 3
	codeDecodeError       = 4
	codeReportedUnhealthy = 5
)

// health mirrors the JSON body of /healthz.
type health struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error"`
}

// probeError carries the exit code for a failed probe.
type probeError struct {
	code int
	err  error
}

func (e *probeError) Error() string { return e.err.Error() }
func (e *probeError) Unwrap() error { return e.err }

func failed(code int, format string, args ...any) error {
	return &probeError{code: code, err: fmt.Errorf(format, args...)}
}

// probe fetches url and checks the reported status. A store that is down
// answers 500 with a reason; the reason wins over the bare HTTP status.
func probe(client *http.Client, url string) (health, error) {
	resp, err := client.Get(url)
	if err != nil {
		return health{}, failed(codeRequestFailed, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var h health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil && !errors.Is(err, io.EOF) {
		return h, failed(codeDecodeError, "decode error: %w", err)
	}
	if h.Status != "" && h.Status != statusOK {
		return h, failed(codeReportedUnhealthy, "service reported %q (store=%s): %s", h.Status, h.Store, h.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return h, failed(codeBadHTTPStatus, "unexpected HTTP status %d", resp.StatusCode)
	}
	return h, nil
}

// detectPort parses APP_PORT and falls back to defaultPort.
func detectPort() int {
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			return p
		}
	}
	return defaultPort
}

func main() {
	port := detectPort()
	url := flag.String("url", fmt.Sprintf("http://localhost:%d%s", port, healthEndpoint), "health endpoint to probe")
	timeout := flag.Duration("timeout", time.Second, "request timeout")
	flag.Parse()

	h, err := probe(&http.Client{Timeout: *timeout}, *url)
	if err != nil {
		log.Print(err)
		var pe *probeError
		if errors.As(err, &pe) {
			os.Exit(pe.code)
		}
		os.Exit(1)
	}
	log.Printf("service healthy at %s (store=%s)", *url, h.Store)
}
