package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTransactionManager_InTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	txm := NewTransactionManager(db, zap.NewNop())
	users := NewUserRepository(db, zap.NewNop())
	pairings := NewPairingRepository(db, zap.NewNop())

	user := models.NewUser("sub-alice", "Alice")
	user.Deactivate()
	pairingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE pairings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Both writes ride the transaction context, so they share one tx
	err := txm.InTransaction(context.Background(), func(txCtx context.Context, _ repositories.Transaction) error {
		if err := users.Update(txCtx, user); err != nil {
			return err
		}
		return pairings.Deactivate(txCtx, pairingID, 1)
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	txm := NewTransactionManager(db, zap.NewNop())
	users := NewUserRepository(db, zap.NewNop())
	pairings := NewPairingRepository(db, zap.NewNop())

	user := models.NewUser("sub-alice", "Alice")
	user.Deactivate()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	// CAS miss on the pairing rolls back the user write as well
	mock.ExpectExec("UPDATE pairings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := txm.InTransaction(context.Background(), func(txCtx context.Context, _ repositories.Transaction) error {
		if err := users.Update(txCtx, user); err != nil {
			return err
		}
		return pairings.Deactivate(txCtx, uuid.New(), 1)
	})

	assert.True(t, errors.Is(err, services.ErrConcurrentUpdate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)
	txm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin().WillReturnError(errors.New("connection lost"))

	err := txm.InTransaction(context.Background(), func(txCtx context.Context, _ repositories.Transaction) error {
		t.Fatal("function must not run when begin fails")
		return nil
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExecutor_OutsideTransaction(t *testing.T) {
	db, _ := newMockDB(t)

	// With no transaction on the context the pool itself executes
	executor := GetExecutor(context.Background(), db)
	assert.Equal(t, db.DB, executor)
}
