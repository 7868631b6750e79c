package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// unsentError имитирует ошибку соединения, после которой запрос точно не был отправлен.
type unsentError struct{}

func (unsentError) Error() string     { return "dial tcp: connection refused" }
func (unsentError) SafeToRetry() bool { return true }

type failingCommitTx struct {
	pgx.Tx
	err error
}

func (tx failingCommitTx) Commit(context.Context) error { return tx.err }

func TestWithRetry_RetriesSerializationFailure(t *testing.T) {
	r := &PostgresRepository{retryDelays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_DoesNotRetryDomainErrors(t *testing.T) {
	r := &PostgresRepository{retryDelays: []time.Duration{time.Millisecond}}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return ErrInsufficientCredits
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	r := &PostgresRepository{retryDelays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_StopsOnCanceledContext(t *testing.T) {
	r := &PostgresRepository{retryDelays: []time.Duration{time.Hour}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.withRetry(ctx, func() error {
		return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: starNameConstraint}

	if !isUniqueViolation(err, starNameConstraint) {
		t.Fatalf("expected unique violation on %s", starNameConstraint)
	}
	if isUniqueViolation(err, "stars_pkey") {
		t.Fatalf("constraint name must be respected")
	}
	if isUniqueViolation(errors.New("boom"), "") {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"request never sent", fmt.Errorf("begin tx: %w", unsentError{}), true},
		{"reset mid-request", errors.New("read tcp: connection reset by peer"), false},
		{"broken pipe", errors.New("write tcp: broken pipe"), false},
		{"uncertain commit after reset", fmt.Errorf("%w: %w", ErrCommitUncertain, errors.New("connection reset by peer")), false},
		{"uncertain commit wrapping retryable", fmt.Errorf("%w: %w", ErrCommitUncertain, unsentError{}), false},
		{"domain error", ErrNameConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Fatalf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCommitTx(t *testing.T) {
	ctx := context.Background()

	if err := commitTx(ctx, failingCommitTx{}); err != nil {
		t.Fatalf("commitTx error: %v", err)
	}

	reset := errors.New("read tcp: connection reset by peer")
	err := commitTx(ctx, failingCommitTx{err: reset})
	if !errors.Is(err, ErrCommitUncertain) || !errors.Is(err, reset) {
		t.Fatalf("err = %v, want ErrCommitUncertain wrapping the network error", err)
	}

	serverErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: starNameConstraint}
	err = commitTx(ctx, failingCommitTx{err: serverErr})
	if errors.Is(err, ErrCommitUncertain) {
		t.Fatalf("server-side commit failure is a definite rollback, got %v", err)
	}
	if !isUniqueViolation(err, starNameConstraint) {
		t.Fatalf("err = %v, want unique violation", err)
	}
}

func TestWithRetry_DoesNotRepeatUncertainCommit(t *testing.T) {
	r := &PostgresRepository{retryDelays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return commitTx(context.Background(), failingCommitTx{err: unsentError{}})
	})
	if !errors.Is(err, ErrCommitUncertain) {
		t.Fatalf("err = %v, want ErrCommitUncertain", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
