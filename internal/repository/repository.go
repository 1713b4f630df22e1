package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"karsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when a transfer id does not exist
var ErrNotFound = errors.New("transfer not found")

type Repository struct {
	db *sql.DB
}

func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_timeout=5000&_cache_size=2000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := r.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

const transferColumns = `id, kind, source, destination, remote, mode, selection, backup_path,
	status, error_message, message, rclone_job_id, stats, deleted_paths,
	created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) CreateTransfer(record *models.TransferRecord) error {
	query := `
		INSERT INTO transfers (
			kind, source, destination, remote, mode, selection, backup_path,
			status, error_message, message, rclone_job_id, stats, deleted_paths,
			created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	result, err := r.db.Exec(query,
		record.Kind, record.Source, record.Destination, record.Remote, record.Mode,
		record.Selection, record.BackupPath, record.Status, record.ErrorMessage,
		record.Message, record.RCloneJobID, record.Stats, record.DeletedPaths,
		record.CreatedAt, record.UpdatedAt, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transfer ID: %w", err)
	}
	record.ID = id

	return nil
}

func (r *Repository) GetTransfer(id int64) (*models.TransferRecord, error) {
	row := r.db.QueryRow("SELECT "+transferColumns+" FROM transfers WHERE id = ?", id)

	record, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return record, nil
}

func (r *Repository) GetTransfers(query models.TransferQuery) ([]*models.TransferRecord, error) {
	sqlQuery := "SELECT " + transferColumns + " FROM transfers"

	var conditions []string
	var args []interface{}

	if len(query.Status) > 0 {
		placeholders := strings.Repeat("?,", len(query.Status))
		placeholders = placeholders[:len(placeholders)-1]
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders))
		for _, status := range query.Status {
			args = append(args, status)
		}
	}

	if query.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, query.Kind)
	}

	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortOrder := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY created_at %s, id %s", sortOrder, sortOrder)

	// SQLite requires LIMIT before OFFSET
	if query.Limit > 0 || query.Offset > 0 {
		limit := query.Limit
		if limit <= 0 {
			limit = -1
		}
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}
	if query.Offset > 0 {
		sqlQuery += " OFFSET ?"
		args = append(args, query.Offset)
	}

	rows, err := r.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	records := make([]*models.TransferRecord, 0)
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return records, nil
}

func (r *Repository) UpdateTransfer(record *models.TransferRecord) error {
	query := `
		UPDATE transfers SET
			backup_path = ?, status = ?, error_message = ?, message = ?,
			rclone_job_id = ?, stats = ?, deleted_paths = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`

	record.UpdatedAt = time.Now()
	result, err := r.db.Exec(query,
		record.BackupPath, record.Status, record.ErrorMessage, record.Message,
		record.RCloneJobID, record.Stats, record.DeletedPaths,
		record.UpdatedAt, record.CompletedAt, record.ID)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, record.ID)
	}

	return nil
}

func (r *Repository) GetTransferSummary() (*models.TransferSummary, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0) as running,
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) as completed,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled
		FROM transfers
	`

	var summary models.TransferSummary
	err := r.db.QueryRow(query).Scan(
		&summary.TotalTransfers, &summary.RunningTransfers, &summary.CompletedTransfers,
		&summary.FailedTransfers, &summary.CancelledTransfers)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer summary: %w", err)
	}

	return &summary, nil
}

// MarkRunningInterrupted fails transfers left running by a previous process
func (r *Repository) MarkRunningInterrupted() (int64, error) {
	now := time.Now()
	result, err := r.db.Exec(`
		UPDATE transfers SET
			status = 'failed', error_message = 'interrupted by application exit',
			updated_at = ?, completed_at = ?
		WHERE status = 'running'
	`, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted transfers: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n > 0 {
		slog.Info("marked interrupted transfers as failed", "count", n)
	}
	return n, nil
}

// CleanupOldTransfers removes finished transfers older than before
func (r *Repository) CleanupOldTransfers(before time.Time) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM transfers
		WHERE status != 'running' AND updated_at < ?
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old transfers: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	slog.Info("cleaned up old transfers", "count", rowsAffected)
	return int(rowsAffected), nil
}

func scanTransfer(row rowScanner) (*models.TransferRecord, error) {
	var record models.TransferRecord
	var backupPath, errorMessage, message sql.NullString
	var rcloneJobID sql.NullInt64
	var completedAt sql.NullTime

	err := row.Scan(
		&record.ID, &record.Kind, &record.Source, &record.Destination, &record.Remote,
		&record.Mode, &record.Selection, &backupPath, &record.Status, &errorMessage,
		&message, &rcloneJobID, &record.Stats, &record.DeletedPaths,
		&record.CreatedAt, &record.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	record.BackupPath = backupPath.String
	record.ErrorMessage = errorMessage.String
	record.Message = message.String
	if rcloneJobID.Valid {
		id := rcloneJobID.Int64
		record.RCloneJobID = &id
	}
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}

	return &record, nil
}
