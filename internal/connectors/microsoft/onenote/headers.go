package onenote

import (
	"net/http"
	"sync"
)

// Headers is the default header set shared by every request a Client sends.
// It is read concurrently by in-flight requests and written by whoever holds
// the current token.
type Headers struct {
	mu     sync.RWMutex
	values http.Header
}

// NewHeaders creates a header set with JSON as the default Accept type.
func NewHeaders(userAgent string) *Headers {
	h := &Headers{values: http.Header{}}
	h.values.Set("Accept", contentTypeJSON)
	if userAgent != "" {
		h.values.Set("User-Agent", userAgent)
	}
	return h
}

// Set replaces a default header.
func (h *Headers) Set(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values.Set(key, value)
}

// Get returns a default header.
func (h *Headers) Get(key string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.values.Get(key)
}

// Del removes a default header.
func (h *Headers) Del(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values.Del(key)
}

// SetAuthorization installs the Authorization header. An empty value removes it.
func (h *Headers) SetAuthorization(value string) {
	if value == "" {
		h.Del("Authorization")
		return
	}
	h.Set("Authorization", value)
}

// Clone returns a snapshot safe to attach to a request.
func (h *Headers) Clone() http.Header {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.values.Clone()
}
