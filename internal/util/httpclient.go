// Package util provides shared HTTP clients, response caching, logging and profiling helpers
package util

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultUserAgent is sent when neither the hoster nor the oracle configures one
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0"

// poolProfile sizes one pooled client
type poolProfile struct {
	timeout        time.Duration
	idleTimeout    time.Duration
	expectContinue time.Duration
	maxIdle        int
	maxIdlePerHost int
	maxPerHost     int
}

var (
	// hoster pages and manifests can be slow and large
	hosterProfile = poolProfile{
		timeout:        30 * time.Second,
		idleTimeout:    2 * time.Minute,
		expectContinue: time.Second,
		maxIdle:        200,
		maxIdlePerHost: 20,
		maxPerHost:     50,
	}
	// oracle and subtitle API calls are small JSON exchanges
	apiProfile = poolProfile{
		timeout:        15 * time.Second,
		idleTimeout:    90 * time.Second,
		expectContinue: 500 * time.Millisecond,
		maxIdle:        150,
		maxIdlePerHost: 25,
		maxPerHost:     40,
	}
)

func newPooledClient(p poolProfile) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: p.timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          p.maxIdle,
			MaxIdleConnsPerHost:   p.maxIdlePerHost,
			MaxConnsPerHost:       p.maxPerHost,
			IdleConnTimeout:       p.idleTimeout,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: p.expectContinue,
			ForceAttemptHTTP2:     true,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

var (
	sharedClient = sync.OnceValue(func() *http.Client { return newPooledClient(hosterProfile) })
	fastClient   = sync.OnceValue(func() *http.Client { return newPooledClient(apiProfile) })
)

// GetSharedClient returns the pooled client used for hoster traffic
func GetSharedClient() *http.Client {
	return sharedClient()
}

// GetFastClient returns the pooled client used for decryption oracles and
// subtitle search
func GetFastClient() *http.Client {
	return fastClient()
}

// ResponseCache keeps response bodies in memory for maxAge. Expired entries
// are misses and are swept in the background until Close.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	maxAge  time.Duration
	maxSize int
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	data   []byte
	stored time.Time
}

// NewResponseCache creates a cache holding at most maxSize bodies
func NewResponseCache(maxAge time.Duration, maxSize int) *ResponseCache {
	c := &ResponseCache{
		entries: make(map[string]cacheEntry, maxSize),
		maxAge:  maxAge,
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns the body stored under key unless it has expired
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.stored) > c.maxAge {
		return nil, false
	}
	return e.data, true
}

// Set stores data under key. Adding a new key to a full cache evicts the
// oldest entry first.
func (c *ResponseCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize && len(c.entries) > 0 {
		oldest := lo.MinBy(lo.Entries(c.entries), func(a, b lo.Entry[string, cacheEntry]) bool {
			return a.Value.stored.Before(b.Value.stored)
		})
		delete(c.entries, oldest.Key)
	}
	c.entries[key] = cacheEntry{data: data, stored: time.Now()}
}

// Len returns the number of stored entries, expired or not
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. It is safe to call more than once.
func (c *ResponseCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *ResponseCache) sweepLoop() {
	interval := max(c.maxAge/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *ResponseCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if time.Since(e.stored) > c.maxAge {
			delete(c.entries, key)
		}
	}
}
