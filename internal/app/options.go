package service

import (
	"github.com/okian/gambit/internal/adapters/ledger"
	"github.com/okian/gambit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a ledger store, used by tests.
func WithStore(store ledger.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLichessBaseURL overrides the remote API base URL, used by tests.
func WithLichessBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.lichessBaseURL = baseURL
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}
