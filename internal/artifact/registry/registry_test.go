package registry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "postgres")
	return New(sqlxDB, time.Second), mock, func() { db.Close() }
}

func TestRegistryRecordInsertsRun(t *testing.T) {
	r, mock, closeDB := newMockRegistry(t)
	defer closeDB()

	rec := RunRecord{
		RunID: "abc123", PlayHash: "playhash", PlayName: "ema_cross_test",
		Symbol: "BTCUSDT", StartMs: 0, EndMs: 1000, ArtifactDir: "/runs/ema_cross_test/BTCUSDT/abc123",
	}

	mock.ExpectExec("INSERT INTO backtest_runs").
		WithArgs(rec.RunID, rec.PlayHash, rec.PlayName, rec.Symbol, rec.StartMs, rec.EndMs, rec.ArtifactDir).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegistryGetByRunIDReturnsNilOnNoRows(t *testing.T) {
	r, mock, closeDB := newMockRegistry(t)
	defer closeDB()

	mock.ExpectQuery("SELECT (.|\n)* FROM backtest_runs WHERE run_id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "play_hash", "play_name", "symbol", "start_ms", "end_ms", "artifact_dir", "created_at"}))

	rec, err := r.GetByRunID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for missing run, got %+v", rec)
	}
}

func TestRegistryGetByRunIDReturnsRecord(t *testing.T) {
	r, mock, closeDB := newMockRegistry(t)
	defer closeDB()

	now := time.Unix(1700000000, 0).UTC()
	rows := sqlmock.NewRows([]string{"run_id", "play_hash", "play_name", "symbol", "start_ms", "end_ms", "artifact_dir", "created_at"}).
		AddRow("abc123", "playhash", "ema_cross_test", "BTCUSDT", int64(0), int64(1000), "/runs/ema_cross_test/BTCUSDT/abc123", now)

	mock.ExpectQuery("SELECT (.|\n)* FROM backtest_runs WHERE run_id = \\$1").
		WithArgs("abc123").
		WillReturnRows(rows)

	rec, err := r.GetByRunID(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if rec == nil || rec.RunID != "abc123" || rec.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestRegistryListByPlayHash(t *testing.T) {
	r, mock, closeDB := newMockRegistry(t)
	defer closeDB()

	now := time.Unix(1700000000, 0).UTC()
	rows := sqlmock.NewRows([]string{"run_id", "play_hash", "play_name", "symbol", "start_ms", "end_ms", "artifact_dir", "created_at"}).
		AddRow("run1", "playhash", "ema_cross_test", "BTCUSDT", int64(0), int64(1000), "/runs/a", now).
		AddRow("run2", "playhash", "ema_cross_test", "ETHUSDT", int64(0), int64(2000), "/runs/b", now)

	mock.ExpectQuery("SELECT (.|\n)* FROM backtest_runs WHERE play_hash = \\$1").
		WithArgs("playhash", 10).
		WillReturnRows(rows)

	recs, err := r.ListByPlayHash(context.Background(), "playhash", 10)
	if err != nil {
		t.Fatalf("ListByPlayHash: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}
