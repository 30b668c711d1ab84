// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package api

import (
	"net/http"
	"strings"
)

// nethttpRequest adapts *http.Request to Request.
type nethttpRequest struct {
	r *http.Request
}

// NewRequest wraps a *http.Request for use as a handshake Request.
func NewRequest(r *http.Request) Request {
	return &nethttpRequest{r: r}
}

func (a *nethttpRequest) Method() string { return a.r.Method }

func (a *nethttpRequest) GetHeaderValue(name string) string {
	return a.r.Header.Get(name)
}

func (a *nethttpRequest) GetHeaderTokens(name string) []string {
	return headerTokens(a.r.Header, name)
}

func (a *nethttpRequest) GetHeaderMultiValues(name string) []string {
	return a.r.Header.Values(name)
}

func (a *nethttpRequest) HasHeader(name string) bool {
	_, ok := a.r.Header[http.CanonicalHeaderKey(name)]
	return ok
}

func (a *nethttpRequest) SetHeader(name, value string) {
	a.r.Header.Set(name, value)
}

// nethttpResponse adapts http.Header plus a mutable status into
// Response, for use on both the client side (reading a received
// response) and the server side (building one to write back).
type nethttpResponse struct {
	header     http.Header
	statusCode int
	statusText string
}

// NewResponse wraps an *http.Response for use as a handshake Response.
func NewResponse(resp *http.Response) Response {
	return &nethttpResponse{
		header:     resp.Header,
		statusCode: resp.StatusCode,
		statusText: resp.Status,
	}
}

// NewServerResponse builds an empty, mutable Response a server-side
// handshake populates before the caller writes it out (e.g. via
// http.ResponseWriter for a hijacked connection, or a raw writer).
func NewServerResponse() Response {
	return &nethttpResponse{header: make(http.Header)}
}

// Header exposes the underlying http.Header, e.g. to copy it onto an
// http.ResponseWriter after a successful server-side handshake.
func (a *nethttpResponse) Header() http.Header { return a.header }

func (a *nethttpResponse) StatusCode() int { return a.statusCode }

func (a *nethttpResponse) SetStatusCode(code int, phrase string) {
	a.statusCode = code
	a.statusText = phrase
}

func (a *nethttpResponse) GetHeaderValue(name string) string {
	return a.header.Get(name)
}

func (a *nethttpResponse) GetHeaderTokens(name string) []string {
	return headerTokens(a.header, name)
}

func (a *nethttpResponse) GetHeaderMultiValues(name string) []string {
	return a.header.Values(name)
}

func (a *nethttpResponse) HasHeader(name string) bool {
	_, ok := a.header[http.CanonicalHeaderKey(name)]
	return ok
}

func (a *nethttpResponse) SetHeader(name, value string) {
	a.header.Set(name, value)
}

// headerTokens splits every occurrence of name on commas, trims and
// lowercases each piece, and drops empties.
func headerTokens(h http.Header, name string) []string {
	var tokens []string
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				tokens = append(tokens, part)
			}
		}
	}
	return tokens
}
