package request

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/router"
)

var defaultLogger = diag.CreateLogger()

var defaultClient = &http.Client{
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

type sendCfg struct {
	logger diag.Logger
	client *http.Client
}

// SendOpt is a send specific option
type SendOpt func(cfg *sendCfg)

func withLogger(logger diag.Logger) SendOpt {
	return func(cfg *sendCfg) {
		cfg.logger = logger
	}
}

// WithClient sets a client to send requests with
func WithClient(client *http.Client) SendOpt {
	return func(cfg *sendCfg) {
		cfg.client = client
	}
}

// ReqFactory is a function that creates an instance of a request
type ReqFactory func(ctx context.Context) (*http.Request, error)

// Get creates a new req factory that creates a get request for given url
func Get(url string) ReqFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, "GET", url, nil)
	}
}

// PostJSON creates a new req factory that posts a given payload as JSON
func PostJSON(url string, payload interface{}) ReqFactory {
	return func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to marshal request payload")
		}
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("content-type", "application/json")
		return req, nil
	}
}

// ResFactory is a function that holds a request result with a response or error
type ResFactory func() (*http.Response, error)

// ReadAll will read entire body as a byte array
func (f ResFactory) ReadAll() ([]byte, error) {
	res, err := f()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

// DecodeJSON will decode the body into a given receiver
func (f ResFactory) DecodeJSON(v interface{}) error {
	body, err := f.ReadAll()
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(body, v), "Failed to decode response body")
}

// newHTTPErrorFromResponse reads an error body written by the router.
// Status text is used if the body is not a recognized error
func newHTTPErrorFromResponse(res *http.Response) router.HTTPError {
	defer res.Body.Close()
	httpErr := router.HTTPError{
		StatusCode: res.StatusCode,
		Status:     http.StatusText(res.StatusCode),
		Message:    http.StatusText(res.StatusCode),
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return httpErr
	}
	var parsed router.HTTPError
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return httpErr
	}
	parsed.StatusCode = res.StatusCode
	return parsed
}

func newResFactory(res *http.Response, err error) ResFactory {
	return func() (*http.Response, error) {
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= 300 {
			return nil, newHTTPErrorFromResponse(res)
		}
		return res, nil
	}
}

// Do will send the request. Will fail if response status is other than 2xx
func Do(ctx context.Context, factory ReqFactory, opts ...SendOpt) ResFactory {
	cfg := sendCfg{
		logger: defaultLogger,
		client: defaultClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	req, err := factory(ctx)
	if err != nil {
		return newResFactory(nil, err)
	}
	if requestID := diag.RequestIDValue(ctx); requestID != "" {
		req.Header.Set("x-request-id", requestID)
	}
	cfg.logger.Debug(ctx, "Sending request: %v %v", req.Method, req.URL)
	res, err := cfg.client.Do(req)
	if err != nil {
		cfg.logger.WithError(err).Warn(ctx, "Request failed: %v %v", req.Method, req.URL)
		return newResFactory(nil, errors.Wrapf(err, "Failed to send %v %v", req.Method, req.URL))
	}
	return newResFactory(res, nil)
}
