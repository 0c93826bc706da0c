// Package openrouter streams chat completions from OpenRouter through its
// OpenAI compatible API.
package openrouter

import (
	"errors"
	"net/http"
	"slices"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/"

var (
	ErrMissingAPIKey = errors.New("openrouter api key not provided")
	ErrMissingModel  = errors.New("openrouter model not provided")
)

type Client struct {
	client         openai.Client
	model          string
	fallbackModels []string
}

type clientOptions struct {
	baseURL        string
	fallbackModels []string
	appTitle       string
	requestOptions []option.RequestOption
}

type ClientOption func(*clientOptions)

// WithFallbackModels lists models OpenRouter tries, in order, when the
// primary model is unavailable.
func WithFallbackModels(models ...string) ClientOption {
	return func(o *clientOptions) {
		for _, model := range models {
			if model != "" {
				o.fallbackModels = append(o.fallbackModels, model)
			}
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

// WithAppTitle sets the X-Title header OpenRouter uses for attribution.
func WithAppTitle(title string) ClientOption {
	return func(o *clientOptions) { o.appTitle = title }
}

// WithRequestOptions passes extra options to the underlying OpenAI client.
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(o *clientOptions) { o.requestOptions = append(o.requestOptions, opts...) }
}

func NewClient(apiKey, model string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	} else if model == "" {
		return nil, ErrMissingModel
	}

	options := clientOptions{baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(options.baseURL),
		option.WithHTTPClient(httpClient),
	}
	if options.appTitle != "" {
		requestOptions = append(requestOptions, option.WithHeader("X-Title", options.appTitle))
	}
	requestOptions = append(requestOptions, options.requestOptions...)

	return &Client{
		client:         openai.NewClient(requestOptions...),
		model:          model,
		fallbackModels: slices.DeleteFunc(slices.Clone(options.fallbackModels), func(m string) bool { return m == model }),
	}, nil
}

// Model returns the primary model.
func (c *Client) Model() string {
	return c.model
}
