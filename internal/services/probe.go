// Package services – endpoint probing for the status command.
package services

import (
	"context"
	"net/http"
	"time"

	"github.com/nexussoftworks/go-keybot/internal/catalog"
)

// EndpointStatus is the probe outcome for a single catalog entry.
type EndpointStatus struct {
	Name    string
	Up      bool
	Latency time.Duration
}

// Probe checks whether a single endpoint answers. A HEAD request is tried
// first; endpoints that reject HEAD (405 or transport refusal) get a GET
// retry. Any response at all, regardless of status class, counts as up:
// the probe measures reachability, not correctness.
func Probe(ctx context.Context, httpc *http.Client, endpoint string) (bool, time.Duration) {
	start := time.Now()
	if ok := probeMethod(ctx, httpc, http.MethodHead, endpoint); ok {
		return true, time.Since(start)
	}
	start = time.Now()
	if ok := probeMethod(ctx, httpc, http.MethodGet, endpoint); ok {
		return true, time.Since(start)
	}
	return false, 0
}

func probeMethod(ctx context.Context, httpc *http.Client, method, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return false
	}
	res, err := httpc.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()
	return true
}

// ProbeAll probes every catalog entry in order and returns one status per
// entry. Entries are probed sequentially; the caller bounds total time via
// ctx and the client timeout.
func ProbeAll(ctx context.Context, httpc *http.Client, c *catalog.Catalog) []EndpointStatus {
	entries := c.Entries()
	out := make([]EndpointStatus, 0, len(entries))
	for _, e := range entries {
		up, lat := Probe(ctx, httpc, e.Endpoint)
		out = append(out, EndpointStatus{Name: e.Name, Up: up, Latency: lat})
	}
	return out
}
