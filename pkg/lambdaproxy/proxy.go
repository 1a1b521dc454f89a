// Package lambdaproxy serves API Gateway proxy events through an http.Handler.
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Proxy adapts an http.Handler to the API Gateway REST proxy integration.
type Proxy struct {
	handler http.Handler
}

// New creates a Proxy around handler.
func New(handler http.Handler) *Proxy {
	return &Proxy{handler: handler}
}

// Handle converts the event into an *http.Request, runs it through the
// handler and converts the recorded response back.
func (p *Proxy) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toRequest(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	w := newResponseWriter()
	p.handler.ServeHTTP(w, req)
	return w.toResponse(), nil
}

func toRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode request body: %w", err)
		}
		body = decoded
	}

	u := url.URL{Path: event.Path, RawQuery: query(event).Encode()}
	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for name, values := range event.MultiValueHeaders {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for name, v := range event.Headers {
		if _, ok := event.MultiValueHeaders[name]; !ok {
			req.Header.Set(name, v)
		}
	}

	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = net.JoinHostPort(ip, "0")
	}
	return req, nil
}

func query(event events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	for name, values := range event.MultiValueQueryStringParameters {
		for _, v := range values {
			q.Add(name, v)
		}
	}
	for name, v := range event.QueryStringParameters {
		if _, ok := event.MultiValueQueryStringParameters[name]; !ok {
			q.Set(name, v)
		}
	}
	return q
}

// responseWriter buffers a response for conversion into a proxy response.
type responseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: http.Header{}}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) toResponse() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	single := make(map[string]string, len(w.header))
	for name, values := range w.header {
		single[name] = strings.Join(values, ",")
	}
	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           single,
		MultiValueHeaders: w.header,
		Body:              w.body.String(),
	}
}
