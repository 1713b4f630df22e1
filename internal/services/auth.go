package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"karsync/internal/interfaces"
	"karsync/internal/models"
)

// DefaultURLWait bounds how long Start waits for the authorization URL
const DefaultURLWait = 15 * time.Second

// AuthService exposes the authorization flow to the API and CLI
type AuthService struct {
	authorizer interfaces.Authorizer
	urlWait    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuthService(authorizer interfaces.Authorizer) *AuthService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AuthService{
		authorizer: authorizer,
		urlWait:    DefaultURLWait,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches an authorization in the background and returns once the
// URL is known, the session ended, or the wait ran out. A session already
// running is replaced.
func (s *AuthService) Start(ctx context.Context) (*models.AuthStatus, error) {
	urlSeen := make(chan struct{})
	var once sync.Once
	done := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)

		result, err := s.authorizer.Authorize(s.ctx, func(string) {
			once.Do(func() { close(urlSeen) })
		})
		if err != nil {
			slog.Warn("authorization ended with error", "error", err)
			return
		}
		slog.Info("authorization ended", "state", result.State, "profile", result.Profile)
	}()

	timer := time.NewTimer(s.urlWait)
	defer timer.Stop()

	select {
	case <-urlSeen:
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.authorizer.Status(), nil
}

// Authorize runs the flow in the foreground
func (s *AuthService) Authorize(ctx context.Context, onURL func(url string)) (*models.AuthResult, error) {
	return s.authorizer.Authorize(ctx, onURL)
}

// Cancel stops the running session; false when there is none
func (s *AuthService) Cancel() bool {
	return s.authorizer.Cancel()
}

func (s *AuthService) Status() *models.AuthStatus {
	return s.authorizer.Status()
}

// Shutdown kills any running session and waits for it to unwind
func (s *AuthService) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
