package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"schroedinger/internal/consistency"
	"schroedinger/internal/game"
	"schroedinger/internal/storage"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
)

// Service is the in-memory registry of games with optional persistence.
type Service struct {
	games   map[string]*game.Game
	mu      sync.RWMutex
	store   *storage.Store // nil if persistence disabled
	checker *consistency.Checker
	waiter  *WaitRegistry
	logger  zerolog.Logger
}

// New creates a service. All games share checker; store may be nil.
func New(checker *consistency.Checker, store *storage.Store, logger zerolog.Logger) *Service {
	return &Service{
		games:   make(map[string]*game.Game),
		store:   store,
		checker: checker,
		waiter:  NewWaitRegistry(WaitTimeout),
		logger:  logger.With().Str("component", "service").Logger(),
	}
}

// GenerateGameID creates a new unique game ID
func (s *Service) GenerateGameID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for {
		id := uuid.New().String()
		if _, exists := s.games[id]; !exists {
			return id
		}
	}
}

// GetGame retrieves a game by ID
func (s *Service) GetGame(gameID string) (*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return g, nil
}

// GameIDs lists the games held in memory.
func (s *Service) GameIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	return ids
}

// DeleteGame removes a game from memory. Stored records are kept.
func (s *Service) DeleteGame(gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	s.waiter.RemoveGame(gameID)
	delete(s.games, gameID)
	return nil
}

// Waiter exposes the long-poll registry.
func (s *Service) Waiter() *WaitRegistry {
	return s.waiter
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// Close releases waiters and storage, reporting every failure.
func (s *Service) Close() error {
	s.mu.Lock()
	s.games = make(map[string]*game.Game)
	s.mu.Unlock()

	var result *multierror.Error
	if err := s.waiter.Shutdown(5 * time.Second); err != nil {
		result = multierror.Append(result, err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close storage: %w", err))
		}
	}
	return result.ErrorOrNil()
}
