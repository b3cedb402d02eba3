package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/zanewnch/AIOT-sub003/internal/domain"
)

func newCommandsRepoMock(t *testing.T) (*PostgresDroneCommandsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresDroneCommandsRepository(db), mock
}

func TestCreateCommand(t *testing.T) {
	repo, mock := newCommandsRepoMock(t)

	mock.ExpectQuery(`INSERT INTO drone_commands`).
		WithArgs("drone-001", domain.CommandTakeoff, sqlmock.AnyArg(), domain.CommandStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.CreateCommand(context.Background(), &domain.DroneCommand{
		DroneID:     "drone-001",
		CommandType: domain.CommandTakeoff,
		IssuedBy:    sql.NullInt64{Int64: 1, Valid: true},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCommand_InvalidType(t *testing.T) {
	repo, _ := newCommandsRepoMock(t)

	_, err := repo.CreateCommand(context.Background(), &domain.DroneCommand{
		DroneID:     "drone-001",
		CommandType: "self_destruct",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid command_type")
}

func TestMarkSent(t *testing.T) {
	repo, mock := newCommandsRepoMock(t)

	mock.ExpectExec(`UPDATE drone_commands`).
		WithArgs(int64(42), domain.CommandStatusSent, domain.CommandStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSent(context.Background(), 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent_NotPending(t *testing.T) {
	repo, mock := newCommandsRepoMock(t)

	// 状态条件不匹配时零行受影响
	mock.ExpectExec(`UPDATE drone_commands`).
		WithArgs(int64(42), domain.CommandStatusSent, domain.CommandStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSent(context.Background(), 42)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not in pending state")
}

func TestMarkFailed_TerminalStateUntouched(t *testing.T) {
	repo, mock := newCommandsRepoMock(t)

	mock.ExpectExec(`UPDATE drone_commands`).
		WithArgs(int64(7), domain.CommandStatusFailed, "link lost", sqlmock.AnyArg(),
			domain.CommandStatusPending, domain.CommandStatusSent).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkFailed(context.Background(), 7, "link lost", time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "terminal state")
}

func TestListCommands(t *testing.T) {
	repo, mock := newCommandsRepoMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM drone_commands`).
		WithArgs("drone-001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	issuedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM drone_commands .+ ORDER BY issued_at DESC`).
		WithArgs("drone-001", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "drone_id", "command_type", "command_data", "status",
			"issued_by", "issued_at", "executed_at", "completed_at", "error_message", "created_at",
		}).AddRow(
			int64(1), "drone-001", domain.CommandLand, nil, domain.CommandStatusCompleted,
			int64(1), issuedAt, issuedAt, issuedAt, nil, issuedAt,
		))

	commands, total, err := repo.ListCommands(context.Background(), CommandFilters{DroneID: "drone-001"}, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, commands, 1)
	require.Equal(t, domain.CommandLand, commands[0].CommandType)
	require.Equal(t, domain.CommandStatusCompleted, commands[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandsArchiveBatch(t *testing.T) {
	repo, mock := newCommandsRepoMock(t)

	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rangeStart := cutoff.Add(-48 * time.Hour)
	rangeEnd := cutoff.Add(-time.Hour)

	mock.ExpectQuery(`WITH moved AS`).
		WithArgs(cutoff, "a3c1f8e2-0000-0000-0000-000000000001").
		WillReturnRows(sqlmock.NewRows([]string{"count", "min", "max"}).
			AddRow(120, rangeStart, rangeEnd))

	result, err := repo.ArchiveBatch(context.Background(), cutoff, "a3c1f8e2-0000-0000-0000-000000000001", 50000)
	require.NoError(t, err)
	require.Equal(t, 120, result.Moved)
	require.Equal(t, rangeStart, result.RangeStart)
	require.Equal(t, rangeEnd, result.RangeEnd)
	require.NoError(t, mock.ExpectationsWereMet())
}
