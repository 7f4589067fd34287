// Package memory provides an in-memory implementation of the repository
// interfaces. It backs the verification harness and the deployment gate so
// the isolation suite runs hermetically, and enforces the same write-time
// invariants as the postgres schema: active-pairing uniqueness and
// compare-and-swap on versioned rows.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
)

// Store holds all in-memory tables behind a single mutex. Point lookups
// are map reads; the lock is held only for the duration of a copy.
type Store struct {
	mu             sync.RWMutex
	users          map[uuid.UUID]*models.User
	usersBySubject map[string]uuid.UUID
	pairings       map[uuid.UUID]*models.Pairing
	preferences    map[uuid.UUID]*models.PreferenceRecord // keyed by owner
	safetyProfiles map[uuid.UUID]*models.SafetyProfile    // keyed by owner
	safetySignals  map[uuid.UUID]*models.SafetySignal
	communications map[uuid.UUID]*models.CommunicationRecord
	assessments    map[uuid.UUID]*models.AssessmentResponse
	auditLogs      []*models.AuditLog
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:          make(map[uuid.UUID]*models.User),
		usersBySubject: make(map[string]uuid.UUID),
		pairings:       make(map[uuid.UUID]*models.Pairing),
		preferences:    make(map[uuid.UUID]*models.PreferenceRecord),
		safetyProfiles: make(map[uuid.UUID]*models.SafetyProfile),
		safetySignals:  make(map[uuid.UUID]*models.SafetySignal),
		communications: make(map[uuid.UUID]*models.CommunicationRecord),
		assessments:    make(map[uuid.UUID]*models.AssessmentResponse),
	}
}

// TransactionManager returns a pass-through transaction manager. The
// store's single mutex already serializes writes, so Begin hands out a
// transaction whose Commit and Rollback are no-ops and InTransaction
// simply runs the function against the live maps.
func (s *Store) TransactionManager() repositories.TransactionManager {
	return &txManager{}
}

type txManager struct{}

type memTx struct {
	ctx context.Context
}

func (t *memTx) Commit() error            { return nil }
func (t *memTx) Rollback() error          { return nil }
func (t *memTx) Context() context.Context { return t.ctx }

func (m *txManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &memTx{ctx: ctx}, nil
}

func (m *txManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, &memTx{ctx: ctx})
}

// Repositories returns the full repository aggregate backed by this store
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:          &userRepo{s},
		Pairings:       &pairingRepo{s},
		Preferences:    &preferenceRepo{s},
		SafetyProfiles: &safetyProfileRepo{s},
		SafetySignals:  &safetySignalRepo{s},
		Communications: &communicationRepo{s},
		Assessments:    &assessmentRepo{s},
		AuditLogs:      &auditRepo{s},
	}
}

// userRepo implements repositories.UserRepository

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *user
	r.s.users[user.ID] = &cp
	r.s.usersBySubject[user.ExternalSubject] = user.ID
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *userRepo) GetByExternalSubject(ctx context.Context, externalSubject string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.usersBySubject[externalSubject]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	cp := *r.s.users[id]
	return &cp, nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return services.ErrUserNotFound
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return paginate(users, limit, offset), nil
}

// pairingRepo implements repositories.PairingRepository

type pairingRepo struct{ s *Store }

func (r *pairingRepo) Create(ctx context.Context, pairing *models.Pairing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Same constraint as the partial unique indexes: no member of a new
	// pairing may already be in an active one.
	for _, existing := range r.s.pairings {
		if !existing.Active {
			continue
		}
		if existing.Contains(pairing.UserAID) || existing.Contains(pairing.UserBID) {
			return services.ErrPairingConflict
		}
	}

	cp := *pairing
	r.s.pairings[pairing.ID] = &cp
	return nil
}

func (r *pairingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Pairing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	pairing, ok := r.s.pairings[id]
	if !ok {
		return nil, services.ErrPairingNotFound
	}
	cp := *pairing
	return &cp, nil
}

func (r *pairingRepo) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Pairing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, pairing := range r.s.pairings {
		if pairing.Active && pairing.Contains(userID) {
			cp := *pairing
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *pairingRepo) Deactivate(ctx context.Context, id uuid.UUID, version int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	pairing, ok := r.s.pairings[id]
	if !ok || !pairing.Active || pairing.Version != version {
		return services.ErrConcurrentUpdate
	}
	pairing.Active = false
	pairing.Version++
	pairing.UpdatedAt = time.Now()
	return nil
}

// preferenceRepo implements repositories.PreferenceRepository

type preferenceRepo struct{ s *Store }

func (r *preferenceRepo) Upsert(ctx context.Context, record *models.PreferenceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *record
	r.s.preferences[record.OwnerUserID] = &cp
	return nil
}

func (r *preferenceRepo) GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.PreferenceRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	record, ok := r.s.preferences[ownerUserID]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	cp := *record
	return &cp, nil
}

// safetyProfileRepo implements repositories.SafetyProfileRepository

type safetyProfileRepo struct{ s *Store }

func (r *safetyProfileRepo) Upsert(ctx context.Context, profile *models.SafetyProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *profile
	r.s.safetyProfiles[profile.OwnerUserID] = &cp
	return nil
}

func (r *safetyProfileRepo) GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.SafetyProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	profile, ok := r.s.safetyProfiles[ownerUserID]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	cp := *profile
	return &cp, nil
}

// safetySignalRepo implements repositories.SafetySignalRepository

type safetySignalRepo struct{ s *Store }

func (r *safetySignalRepo) Append(ctx context.Context, signal *models.SafetySignal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *signal
	r.s.safetySignals[signal.ID] = &cp
	return nil
}

func (r *safetySignalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SafetySignal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	signal, ok := r.s.safetySignals[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	cp := *signal
	return &cp, nil
}

func (r *safetySignalRepo) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit, offset int) ([]*models.SafetySignal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var signals []*models.SafetySignal
	for _, signal := range r.s.safetySignals {
		if signal.OwnerUserID == ownerUserID {
			cp := *signal
			signals = append(signals, &cp)
		}
	}
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].RecordedAt.After(signals[j].RecordedAt)
	})
	return paginate(signals, limit, offset), nil
}

// communicationRepo implements repositories.CommunicationRepository

type communicationRepo struct{ s *Store }

func (r *communicationRepo) Create(ctx context.Context, record *models.CommunicationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *record
	r.s.communications[record.ID] = &cp
	return nil
}

func (r *communicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CommunicationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	record, ok := r.s.communications[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	cp := *record
	return &cp, nil
}

func (r *communicationRepo) ListByPairing(ctx context.Context, pairingID uuid.UUID, limit, offset int) ([]*models.CommunicationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var records []*models.CommunicationRecord
	for _, record := range r.s.communications {
		if record.PairingID == pairingID {
			cp := *record
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return paginate(records, limit, offset), nil
}

// assessmentRepo implements repositories.AssessmentRepository

type assessmentRepo struct{ s *Store }

func (r *assessmentRepo) Create(ctx context.Context, response *models.AssessmentResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *response
	cp.ConsentGranted = false
	cp.Version = 1
	r.s.assessments[response.ID] = &cp

	response.ConsentGranted = false
	response.Version = 1
	return nil
}

func (r *assessmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AssessmentResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	response, ok := r.s.assessments[id]
	if !ok {
		return nil, services.ErrAssessmentNotFound
	}
	cp := *response
	return &cp, nil
}

func (r *assessmentRepo) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]*models.AssessmentResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var responses []*models.AssessmentResponse
	for _, response := range r.s.assessments {
		if response.OwnerUserID == ownerUserID {
			cp := *response
			responses = append(responses, &cp)
		}
	}
	sortAssessments(responses)
	return responses, nil
}

func (r *assessmentRepo) ListByPairing(ctx context.Context, pairingID uuid.UUID) ([]*models.AssessmentResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var responses []*models.AssessmentResponse
	for _, response := range r.s.assessments {
		if response.PairingID == pairingID {
			cp := *response
			responses = append(responses, &cp)
		}
	}
	sortAssessments(responses)
	return responses, nil
}

func (r *assessmentRepo) SetConsent(ctx context.Context, id uuid.UUID, granted bool, version int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	response, ok := r.s.assessments[id]
	if !ok {
		return services.ErrAssessmentNotFound
	}
	if response.Version != version {
		return services.ErrConcurrentUpdate
	}
	response.ConsentGranted = granted
	response.Version++
	response.UpdatedAt = time.Now()
	return nil
}

// auditRepo implements repositories.AuditRepository

type auditRepo struct{ s *Store }

func (r *auditRepo) Insert(ctx context.Context, log *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *log
	r.s.auditLogs = append(r.s.auditLogs, &cp)
	return nil
}

func (r *auditRepo) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var logs []*models.AuditLog
	for _, log := range r.s.auditLogs {
		if log.SubjectID != nil && *log.SubjectID == subjectID {
			cp := *log
			logs = append(logs, &cp)
		}
	}
	return paginate(logs, limit, offset), nil
}

func (r *auditRepo) ListByOutcome(ctx context.Context, outcome models.AuditOutcome, limit, offset int) ([]*models.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var logs []*models.AuditLog
	for _, log := range r.s.auditLogs {
		if log.Outcome == outcome {
			cp := *log
			logs = append(logs, &cp)
		}
	}
	return paginate(logs, limit, offset), nil
}

func sortAssessments(responses []*models.AssessmentResponse) {
	sort.Slice(responses, func(i, j int) bool {
		return responses[i].CreatedAt.After(responses[j].CreatedAt)
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
