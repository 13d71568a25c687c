// Package devkit holds test doubles shared by the provider and core
// test suites: a scripted HTTP client and in-memory collaborators.
package devkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPScript is one canned response. Scripts are consumed in request
// order; the last one repeats for any extra requests.
type HTTPScript struct {
	Status  int
	Body    string
	Headers map[string]string
	Err     error
}

// FakeHTTPClient satisfies providers.HTTPDoer and records every
// request it sees, body included, for later assertions.
type FakeHTTPClient struct {
	mu       sync.Mutex
	scripts  []HTTPScript
	requests []RecordedRequest
}

type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func NewFakeHTTPClient(scripts ...HTTPScript) *FakeHTTPClient {
	return &FakeHTTPClient{scripts: append([]HTTPScript(nil), scripts...)}
}

func (c *FakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("devkit: fake http client is nil")
	}
	var body []byte
	if req.Body != nil {
		read, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = read
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	index := len(c.requests) - 1
	var script HTTPScript
	switch {
	case index < len(c.scripts):
		script = c.scripts[index]
	case len(c.scripts) > 0:
		script = c.scripts[len(c.scripts)-1]
	default:
		script = HTTPScript{Status: http.StatusOK, Body: "{}"}
	}
	if script.Err != nil {
		return nil, script.Err
	}

	status := script.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	for key, value := range script.Headers {
		header.Set(key, value)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(script.Body))),
		Request:    req,
	}, nil
}

func (c *FakeHTTPClient) Requests() []RecordedRequest {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]RecordedRequest, len(c.requests))
	copy(out, c.requests)
	return out
}
