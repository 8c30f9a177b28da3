// Package proxy manages the outbound network identity used for collector
// fetches: a proxy URL plus user agent, rotated on a timer and after
// consecutive failures from the same identity.
package proxy

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// DefaultUserAgent identifies the crawler on direct (unproxied) requests.
const DefaultUserAgent = "PersonIntelCrawler/1.0"

// failureThreshold is how many consecutive failures trigger a rotation.
const failureThreshold = 3

// Identity is one egress identity handed to a fetch.
type Identity struct {
	// ProxyURL is empty for direct connections.
	ProxyURL  string
	UserAgent string
}

// Config holds proxy pool configuration.
type Config struct {
	Enabled bool
	// URLs is the proxy pool; rotation cycles through it.
	URLs     []string
	Username string
	Password string
	// RotationInterval forces a rotation after this much time on one
	// identity. Zero disables time-based rotation.
	RotationInterval time.Duration
	UserAgent        string
}

// Manager supplies identities to fetches and rotates on failure.
// Safe for concurrent use by collectors across runs.
type Manager struct {
	mu           sync.Mutex
	config       Config
	index        int
	failures     int
	lastRotation time.Time
	now          func() time.Time
}

// New creates a manager. With Enabled false (or an empty pool) every
// request gets a direct identity.
func New(config Config) *Manager {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &Manager{
		config:       config,
		lastRotation: time.Now(),
		now:          time.Now,
	}
}

// Next returns the identity to use for the next request.
func (m *Manager) Next() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Enabled || len(m.config.URLs) == 0 {
		return Identity{UserAgent: m.config.UserAgent}
	}

	if m.config.RotationInterval > 0 && m.now().Sub(m.lastRotation) > m.config.RotationInterval {
		m.rotateLocked()
	}

	return Identity{
		ProxyURL:  m.authenticated(m.config.URLs[m.index]),
		UserAgent: m.config.UserAgent,
	}
}

// ReportFailure notes a failed request through the given identity.
// Consecutive failures past the threshold swap the identity.
func (m *Manager) ReportFailure(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Enabled || len(m.config.URLs) == 0 {
		return
	}
	// Stale report from an identity already rotated away.
	if id.ProxyURL != m.authenticated(m.config.URLs[m.index]) {
		return
	}

	m.failures++
	if m.failures >= failureThreshold {
		m.rotateLocked()
	}
}

// ReportSuccess resets the consecutive-failure counter.
func (m *Manager) ReportSuccess(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.config.URLs) == 0 || id.ProxyURL == m.authenticated(m.config.URLs[m.index]) {
		m.failures = 0
	}
}

// rotateLocked advances to the next identity. Caller holds the lock.
func (m *Manager) rotateLocked() {
	m.index = (m.index + 1) % len(m.config.URLs)
	m.failures = 0
	m.lastRotation = m.now()
}

// authenticated embeds credentials into a proxy URL when configured.
func (m *Manager) authenticated(raw string) string {
	if m.config.Username == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%s://%s:%s@%s%s",
		parsed.Scheme, m.config.Username, m.config.Password, parsed.Host, parsed.Path)
}
