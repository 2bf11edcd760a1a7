package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/tradelab-io/statsync/internal/logger"
	"github.com/tradelab-io/statsync/internal/types"
	"github.com/tradelab-io/statsync/pkg/errors"
)

// DuckDBStore implements ParticipantStore on an embedded DuckDB database.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBStore opens (or creates) the participant database at path.
// Use ":memory:" for an ephemeral store in tests.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open participant database", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS participants (
			token VARCHAR PRIMARY KEY,
			name VARCHAR,
			csv_url VARCHAR,
			stats VARCHAR,
			created_at TIMESTAMP DEFAULT current_timestamp
		);
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to create participants table", err)
	}

	return &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// FindByToken implements ParticipantStore.
func (s *DuckDBStore) FindByToken(ctx context.Context, token string) (*types.Participant, error) {
	query, args, err := s.sq.
		Select("token", "name", "csv_url", "stats").
		From("participants").
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build participant query", err)
	}

	p, err := scanParticipant(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeParticipantNotFound, "participant %s not found", token)
		}

		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan participant", err)
	}

	return p, nil
}

// Upsert implements ParticipantStore.
func (s *DuckDBStore) Upsert(ctx context.Context, p types.Participant) error {
	statsBlob := sql.NullString{String: "", Valid: false}

	if p.Stats != nil {
		data, err := json.Marshal(p.Stats)
		if err != nil {
			return errors.Wrap(errors.ErrCodePersistFailed, "failed to marshal participant stats", err)
		}

		statsBlob = sql.NullString{String: string(data), Valid: true}
	}

	query, args, err := s.sq.
		Insert("participants").
		Columns("token", "name", "csv_url", "stats").
		Values(p.Token, p.Name, p.CsvURL, statsBlob).
		Suffix(`ON CONFLICT (token) DO UPDATE SET
			name = excluded.name,
			csv_url = excluded.csv_url,
			stats = excluded.stats`).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistFailed, "failed to build upsert statement", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(errors.ErrCodePersistFailed, err, "failed to upsert participant %s", p.Token)
	}

	s.logger.Debug("Participant upserted", zap.String("token", p.Token))

	return nil
}

// List implements ParticipantStore.
func (s *DuckDBStore) List(ctx context.Context) ([]types.Participant, error) {
	query, args, err := s.sq.
		Select("token", "name", "csv_url", "stats").
		From("participants").
		OrderBy("token").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build list query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list participants", err)
	}
	defer rows.Close()

	var out []types.Participant

	for rows.Next() {
		p, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan participant row", err)
		}

		out = append(out, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate participants", err)
	}

	return out, nil
}

// Close implements ParticipantStore.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// scanParticipant reads one participant row, decoding the stats blob when
// present.
func scanParticipant(scan func(dest ...any) error) (*types.Participant, error) {
	var (
		p     types.Participant
		name  sql.NullString
		url   sql.NullString
		stats sql.NullString
	)

	if err := scan(&p.Token, &name, &url, &stats); err != nil {
		return nil, err
	}

	p.Name = name.String
	p.CsvURL = url.String

	if stats.Valid && stats.String != "" {
		var decoded types.ParticipantStats
		if err := json.Unmarshal([]byte(stats.String), &decoded); err != nil {
			return nil, err
		}

		p.Stats = &decoded
	}

	return &p, nil
}
