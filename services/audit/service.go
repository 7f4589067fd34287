// Package audit records authorization decisions asynchronously. The
// trail is the only place where a silent denial and a missing record are
// distinguishable; externally both look like "no data".
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration for the audit service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// Service handles asynchronous audit logging. Decisions are queued on a
// bounded channel and written by background workers so the authorization
// hot path never waits on the trail.
type Service struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *models.AuditLog
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// NewService creates a new audit service instance
func NewService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *models.AuditLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for all pending events to be processed.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// RecordDecision queues an authorization decision for the trail.
// Non-blocking: if the buffer is full the entry is dropped with a
// warning rather than stalling the authorization path.
func (s *Service) RecordDecision(subjectID *uuid.UUID, operation string, resourceType models.ResourceType, resourceID *uuid.UUID, outcome models.AuditOutcome, reason string) error {
	return s.enqueue(models.NewAuditLog(subjectID, operation, resourceType, resourceID, outcome, reason))
}

// RecordConsentChange queues a consent ledger write for the trail
func (s *Service) RecordConsentChange(subjectID uuid.UUID, resourceID uuid.UUID, granted bool) error {
	operation := "consent_revoke"
	if granted {
		operation = "consent_grant"
	}
	return s.enqueue(models.NewAuditLog(&subjectID, operation, models.ResourceAssessment, &resourceID, models.OutcomeAllowed, ""))
}

// RecordPairingChange queues a pairing lifecycle write for the trail
func (s *Service) RecordPairingChange(subjectID *uuid.UUID, operation string, pairingID uuid.UUID, outcome models.AuditOutcome, reason string) error {
	return s.enqueue(models.NewAuditLog(subjectID, operation, models.ResourceType("pairing"), &pairingID, outcome, reason))
}

func (s *Service) enqueue(log *models.AuditLog) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	select {
	case s.eventChan <- log:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("operation", log.Operation),
			zap.String("outcome", string(log.Outcome)))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes entries from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		if err := s.processEntry(log); err != nil {
			s.logger.Error("failed to write audit entry",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("operation", log.Operation))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) processEntry(log *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}
