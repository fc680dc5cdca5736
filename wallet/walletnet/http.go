// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package walletnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResponseSizeLimit = 1 << 20 // 1 MiB

var client = &http.Client{Timeout: 30 * time.Second}

// HTTPError is returned for any response with a non-2xx status code.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error satisfies the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %q (code %d)", e.Status, e.StatusCode)
}

// RequestOption are optional arguments to Get, Post, Patch, or Do.
type RequestOption struct {
	responseSizeLimit int64
	statusFunc        func(int)
	header            *[2]string
	errThing          any
}

// WithSizeLimit sets a size limit for a response. See defaultResponseSizeLimit
// for the default.
func WithSizeLimit(limit int64) *RequestOption {
	return &RequestOption{responseSizeLimit: limit}
}

// WithStatusFunc calls a function with the status code after the request is
// performed.
func WithStatusFunc(f func(int)) *RequestOption {
	return &RequestOption{statusFunc: f}
}

// WithRequestHeader adds a header entry to the request.
func WithRequestHeader(k, v string) *RequestOption {
	h := [2]string{k, v}
	return &RequestOption{header: &h}
}

// WithErrorParsing adds parsing of response bodies for HTTP error responses.
// The *HTTPError is still returned.
func WithErrorParsing(thing any) *RequestOption {
	return &RequestOption{errThing: thing}
}

// Post performs an HTTP POST request with a JSON body. If thing is non-nil,
// the response will be JSON-unmarshaled into thing.
func Post(ctx context.Context, uri string, thing any, body any, opts ...*RequestOption) error {
	return sendJSON(ctx, http.MethodPost, uri, thing, body, opts...)
}

// Patch performs an HTTP PATCH request with a JSON body.
func Patch(ctx context.Context, uri string, thing any, body any, opts ...*RequestOption) error {
	return sendJSON(ctx, http.MethodPatch, uri, thing, body, opts...)
}

func sendJSON(ctx context.Context, method, uri string, thing, body any, opts ...*RequestOption) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, r)
	if err != nil {
		return fmt.Errorf("error constructing request: %w", err)
	}
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return Do(req, thing, opts...)
}

// Get performs an HTTP GET request. If thing is non-nil, the response will be
// JSON-unmarshaled into thing.
func Get(ctx context.Context, uri string, thing any, opts ...*RequestOption) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("error constructing request: %w", err)
	}
	return Do(req, thing, opts...)
}

// Do does the request and JSON-unmarshals the result into thing, if non-nil.
func Do(req *http.Request, thing any, opts ...*RequestOption) error {
	var sizeLimit int64 = defaultResponseSizeLimit
	var statusFunc func(int)
	var errThing any
	for _, opt := range opts {
		switch {
		case opt.responseSizeLimit > 0:
			sizeLimit = opt.responseSizeLimit
		case opt.statusFunc != nil:
			statusFunc = opt.statusFunc
		case opt.header != nil:
			req.Header.Add(opt.header[0], opt.header[1])
		case opt.errThing != nil:
			errThing = opt.errThing
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()
	if statusFunc != nil {
		statusFunc(resp.StatusCode)
	}
	reader := io.LimitReader(resp.Body, sizeLimit)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		if errThing != nil {
			if err = json.NewDecoder(reader).Decode(errThing); err != nil {
				return fmt.Errorf("%w. error encountered parsing error body: %v", httpErr, err)
			}
		}
		return httpErr
	}
	if thing == nil {
		return nil
	}
	if err = json.NewDecoder(reader).Decode(thing); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
