package webpilot

import (
	"github.com/viant/webpilot/model/agent"
	"github.com/viant/webpilot/service/browser"
	"github.com/viant/webpilot/service/event"
	"github.com/viant/webpilot/service/llm"
)

// Option customises the service.
type Option func(s *Service)

// WithConfig sets the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithEngineFactory sets the execution engine factory.
func WithEngineFactory(factory agent.Factory) Option {
	return func(s *Service) { s.factory = factory }
}

// WithModelClient injects a pre-built model client, bypassing credential
// profile resolution.
func WithModelClient(client llm.Client) Option {
	return func(s *Service) { s.model = client }
}

// WithBrowserManager overrides the shared browser manager.
func WithBrowserManager(manager *browser.Manager) Option {
	return func(s *Service) { s.browser = manager }
}

// WithEventHandler registers a callback invoked synchronously for every
// event published by any task.
func WithEventHandler(handler func(taskID string, anEvent *event.Event)) Option {
	return func(s *Service) { s.eventHandler = handler }
}
