// Package httptransport sends one-shot GraphQL requests as HTTP POST.
package httptransport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

const (
	ContentEncodingHeader = "Content-Encoding"
	AcceptEncodingHeader  = "Accept-Encoding"

	acceptedEncodings = "gzip, deflate, br"
)

var DefaultHTTPClient = &http.Client{
	Timeout: time.Second * 30,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 64,
	},
}

// Response is the fully read response of one request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	header     http.Header
	log        abstractlogger.Logger
}

type Option func(c *Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers sent with every request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

func WithLogger(log abstractlogger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func New(endpoint string, options ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: DefaultHTTPClient,
		header:     http.Header{},
		log:        abstractlogger.NoopLogger,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Do posts body to the endpoint and reads the complete, decoded response.
// Errors of the underlying http.Client and of the body read are returned unchanged.
func (c *Client) Do(ctx context.Context, body transport.Body) (*Response, error) {
	request, err := c.buildRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	reader, err := respBodyReader(response)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	c.log.Debug("httptransport: response received",
		abstractlogger.String("endpoint", c.endpoint),
		abstractlogger.Int("status", response.StatusCode),
		abstractlogger.Int("bytes", len(data)),
	)

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       data,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, body transport.Body) (*http.Request, error) {
	payload, err := body.MarshalJSON()
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	for key, values := range c.header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(AcceptEncodingHeader, acceptedEncodings)

	return request, nil
}

// respBodyReader decodes the body according to its Content-Encoding.
// Setting Accept-Encoding ourselves disables the transparent gzip handling of net/http.
func respBodyReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get(ContentEncodingHeader) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	}

	return io.NopCloser(resp.Body), nil
}
