package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/wire"
	"golang.org/x/sync/singleflight"
)

// HTTPTransport sends single-shot queries to a graph served over HTTP.
// Subscriptions receive one result: the endpoint does not stream.
type HTTPTransport struct {
	url      string
	registry *registry.Registry
	client   *http.Client
	logger   *slog.Logger
	group    singleflight.Group
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithHTTPLogger sets the transport logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport posting queries to url. Responses are
// decoded with the node types of reg.
func NewHTTPTransport(url string, reg *registry.Registry, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		url:      url,
		registry: reg,
		client:   http.DefaultClient,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Query posts query and decodes the response. Identical concurrent reads share
// one request.
func (t *HTTPTransport) Query(ctx context.Context, query *domain.Definition) (*domain.Definition, error) {
	body, err := wire.Serialize(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if !query.Is(nodes.RefType) {
		return t.post(ctx, body)
	}
	v, err, shared := t.group.Do(string(body), func() (any, error) {
		return t.post(ctx, body)
	})
	if shared {
		t.logger.Debug("Query shared", "url", t.url)
	}
	result, _ := v.(*domain.Definition)
	return result, err
}

// Subscribe delivers the result of a single query.
func (t *HTTPTransport) Subscribe(query *domain.Definition, fn func(*domain.Definition)) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	go func() {
		result, err := t.Query(ctx, query)
		if ctx.Err() != nil {
			return
		}
		if result == nil {
			result = domain.ErrorNode(err)
		}
		fn(result)
	}()
	return stop
}

func (t *HTTPTransport) post(ctx context.Context, body []byte) (*domain.Definition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote query: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read remote response: %w", err)
	}
	result, err := wire.Deserialize(t.registry, data)
	if err != nil {
		t.logger.Warn("Undecodable remote response", "status", resp.StatusCode, "error", err)
		return nil, fmt.Errorf("remote response (%s): %w", resp.Status, err)
	}
	if e := domain.ErrorOf(result); e != nil {
		return result, e
	}
	return result, nil
}
