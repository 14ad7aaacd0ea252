package server

import (
	"context"
	"fmt"
	"net/http"
)

// pingable matches anything with a context-aware Ping method, such as
// *store.SQLiteStore.
type pingable interface {
	Ping(ctx context.Context) error
}

// StorePinger probes the chunk store's database connection. It satisfies the
// Pinger interface and is used by GET /api/ready.
type StorePinger struct {
	store pingable
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(st pingable) *StorePinger {
	return &StorePinger{store: st}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "store" }

// Ping checks the database connection.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// EndpointPinger probes an HTTP backend (the chat or embedding API) with a
// GET to its base URL. Any response, including 4xx, proves reachability:
// provider roots commonly return 404 or 401 without credentials.
type EndpointPinger struct {
	// name identifies the backend in readiness responses (e.g. "llm", "embedder").
	name string
	// url is the base URL probed.
	url string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewEndpointPinger constructs an EndpointPinger for the given backend name
// and base URL.
func NewEndpointPinger(name, url string) *EndpointPinger {
	return &EndpointPinger{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the backend label used in readiness responses.
func (p *EndpointPinger) Name() string { return p.name }

// Ping sends a GET to the backend's base URL and succeeds on any HTTP
// response below 500.
func (p *EndpointPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}
