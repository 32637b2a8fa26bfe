// Package browser manages the shared Chrome instance the execution engines
// attach to over the DevTools protocol.  The instance is reference counted
// across tasks and launched on first use; releasing the last reference keeps
// the browser running so subsequent tasks attach instantly and active
// sessions are never torn down underneath another task.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// Config controls how the shared browser is launched.
type Config struct {
	// Binary is the browser executable, defaulting to google-chrome.
	Binary string `json:"binary,omitempty" yaml:"binary,omitempty"`
	// DebugPort is the DevTools remote debugging port.
	DebugPort int `json:"debugPort,omitempty" yaml:"debugPort,omitempty"`
	// Headless launches the browser without a window.
	Headless bool `json:"headless,omitempty" yaml:"headless,omitempty"`
	// UserDataDir isolates the browser profile when set.
	UserDataDir string `json:"userDataDir,omitempty" yaml:"userDataDir,omitempty"`
	// StartupTimeout bounds the wait for the debug endpoint after launch.
	StartupTimeout time.Duration `json:"startupTimeout,omitempty" yaml:"startupTimeout,omitempty"`
}

// DefaultConfig returns the stock local-Chrome configuration.
func DefaultConfig() Config {
	return Config{
		Binary:         "google-chrome",
		DebugPort:      9222,
		Headless:       true,
		StartupTimeout: 15 * time.Second,
	}
}

func (c *Config) init() {
	defaults := DefaultConfig()
	if c.Binary == "" {
		c.Binary = defaults.Binary
	}
	if c.DebugPort == 0 {
		c.DebugPort = defaults.DebugPort
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = defaults.StartupTimeout
	}
}

// Handle is a task's lease on the shared browser.  Release returns the lease
// without closing the browser.
type Handle struct {
	DebugURL string
	manager  *Manager
	once     sync.Once
}

// Release returns the lease.  Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.manager.release()
	})
}

// Manager owns the shared browser lifecycle.
type Manager struct {
	config Config

	mu   sync.Mutex
	refs int

	runner *gosh.Service

	// launch and probe are swappable for tests.
	launch func(ctx context.Context) error
	probe  func(ctx context.Context, debugURL string) bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithLauncher overrides the browser launch command.
func WithLauncher(launch func(ctx context.Context) error) Option {
	return func(m *Manager) {
		m.launch = launch
	}
}

// WithProbe overrides the debug-endpoint reachability check.
func WithProbe(probe func(ctx context.Context, debugURL string) bool) Option {
	return func(m *Manager) {
		m.probe = probe
	}
}

// New creates a browser manager.
func New(config Config, options ...Option) *Manager {
	config.init()
	result := &Manager{config: config}
	result.launch = result.launchLocal
	result.probe = probeDebugEndpoint
	for _, option := range options {
		option(result)
	}
	return result
}

// DebugURL returns the DevTools endpoint engines attach to.
func (m *Manager) DebugURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.config.DebugPort)
}

// Refs returns the current lease count.
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Acquire leases the shared browser, launching it when the debug endpoint is
// not yet reachable.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	debugURL := m.DebugURL()
	if !m.probe(ctx, debugURL) {
		if err := m.launch(ctx); err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		if err := m.awaitReady(ctx, debugURL); err != nil {
			return nil, err
		}
	}
	m.refs++
	return &Handle{DebugURL: debugURL, manager: m}, nil
}

func (m *Manager) awaitReady(ctx context.Context, debugURL string) error {
	deadline := time.Now().Add(m.config.StartupTimeout)
	for time.Now().Before(deadline) {
		if m.probe(ctx, debugURL) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("browser debug endpoint %s not reachable after %s", debugURL, m.config.StartupTimeout)
}

func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs > 0 {
		m.refs--
	}
}

// launchLocal starts the browser detached through a local shell session so
// it outlives the launching command.
func (m *Manager) launchLocal(ctx context.Context) error {
	if m.runner == nil {
		service, err := gosh.New(ctx, local.New())
		if err != nil {
			return fmt.Errorf("failed to create shell session: %w", err)
		}
		m.runner = service
	}
	command := fmt.Sprintf("nohup %s %s > /dev/null 2>&1 &", m.config.Binary, m.launchFlags())
	output, status, err := m.runner.Run(ctx, command, runner.WithTimeout(int(m.config.StartupTimeout.Milliseconds())))
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("browser launch exited with status %d: %s", status, output)
	}
	return nil
}

func (m *Manager) launchFlags() string {
	flags := fmt.Sprintf("--remote-debugging-port=%d --no-first-run --no-default-browser-check", m.config.DebugPort)
	if m.config.Headless {
		flags += " --headless=new"
	}
	if m.config.UserDataDir != "" {
		flags += " --user-data-dir=" + m.config.UserDataDir
	}
	return flags
}

func probeDebugEndpoint(ctx context.Context, debugURL string) bool {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, debugURL+"/json/version", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: time.Second}
	response, err := client.Do(request)
	if err != nil {
		return false
	}
	defer response.Body.Close()
	return response.StatusCode == http.StatusOK
}
