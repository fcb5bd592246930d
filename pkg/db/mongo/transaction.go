package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "roombook/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	writeConflictCode = 112
	transientTxnLabel = "TransientTransactionError"

	defaultMaxCommitTime = 5 * time.Second
)

// TransactionFunc runs inside a transaction. The context it receives is a
// mongo.SessionContext and must be passed to every collection call.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type TxOption func(*mongoTransactionManager)

// WithMaxCommitTime bounds how long the server may spend committing.
func WithMaxCommitTime(d time.Duration) TxOption {
	return func(m *mongoTransactionManager) {
		if d > 0 {
			m.maxCommitTime = d
		}
	}
}

type mongoTransactionManager struct {
	client        *mongo.Client
	maxCommitTime time.Duration
}

func NewTransactionManager(client *mongo.Client, opts ...TxOption) TransactionManager {
	m := &mongoTransactionManager{client: client, maxCommitTime: defaultMaxCommitTime}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ExecuteTransaction runs fn with snapshot reads and majority writes. The
// driver retries fn on transient errors; a call made from inside another
// transaction joins it instead of opening a second session.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetMaxCommitTime(&m.maxCommitTime)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, txnOpts)

	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	default:
		return fmt.Errorf("transaction failed: %w", err)
	}
}

// IsWriteConflict reports whether err is a transaction write conflict that
// survived the driver's own retries.
func IsWriteConflict(err error) bool {
	var serverErr mongo.ServerError
	if !errors.As(err, &serverErr) {
		return false
	}
	return serverErr.HasErrorCode(writeConflictCode) ||
		serverErr.HasErrorLabel(transientTxnLabel)
}
