package ollama

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/insurance-upsell/internal/infrastructure/resilience"
)

// Client talks to the Ollama HTTP API. It is shared by the Embedder and the
// Generator so both go through the same limiter and circuit breakers.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	embedDims  int
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.executor = executor
		}
	}
}

// WithRateLimit caps outgoing requests per second. Non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithEmbeddingDimensions makes the embedder reject vectors of any other width.
func WithEmbeddingDimensions(dims int) Option {
	return func(c *Client) {
		c.embedDims = dims
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   resilience.NewExecutor(resilience.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
