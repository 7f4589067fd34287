package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db, logger: zap.NewNop()}, mock
}

func TestPairingRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPairingRepository(db, zap.NewNop())

	pairing := models.NewPairing(uuid.New(), uuid.New(), models.RelationshipPartners)

	mock.ExpectExec("INSERT INTO pairings").
		WithArgs(pairing.ID, pairing.UserAID, pairing.UserBID, pairing.RelationshipType,
			pairing.Active, pairing.Version, pairing.CreatedAt, pairing.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), pairing)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepository_Create_UniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPairingRepository(db, zap.NewNop())

	pairing := models.NewPairing(uuid.New(), uuid.New(), models.RelationshipPartners)

	mock.ExpectExec("INSERT INTO pairings").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), pairing)

	assert.True(t, errors.Is(err, services.ErrPairingConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepository_GetActiveByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPairingRepository(db, zap.NewNop())

	userID := uuid.New()
	partnerID := uuid.New()
	pairingID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_a_id", "user_b_id", "relationship_type", "active", "version", "created_at", "updated_at",
	}).AddRow(pairingID, userID, partnerID, "partners", true, int64(1), now, now)

	mock.ExpectQuery("SELECT (.+) FROM pairings").
		WithArgs(userID).
		WillReturnRows(rows)

	pairing, err := repo.GetActiveByUserID(context.Background(), userID)

	require.NoError(t, err)
	require.NotNil(t, pairing)
	assert.Equal(t, pairingID, pairing.ID)
	assert.True(t, pairing.Contains(userID))
	assert.Equal(t, partnerID, pairing.PartnerOf(userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepository_GetActiveByUserID_Unpaired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPairingRepository(db, zap.NewNop())

	userID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM pairings").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_a_id", "user_b_id", "relationship_type", "active", "version", "created_at", "updated_at",
		}))

	pairing, err := repo.GetActiveByUserID(context.Background(), userID)

	assert.NoError(t, err)
	assert.Nil(t, pairing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepository_Deactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPairingRepository(db, zap.NewNop())

	pairingID := uuid.New()

	mock.ExpectExec("UPDATE pairings").
		WithArgs(pairingID, int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deactivate(context.Background(), pairingID, 1)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairingRepository_Deactivate_VersionMismatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPairingRepository(db, zap.NewNop())

	pairingID := uuid.New()

	mock.ExpectExec("UPDATE pairings").
		WithArgs(pairingID, int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), pairingID, 3)

	assert.True(t, errors.Is(err, services.ErrConcurrentUpdate))
	assert.NoError(t, mock.ExpectationsWereMet())
}
