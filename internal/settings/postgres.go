package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tenteen/tenteen/internal/db"
	"github.com/tenteen/tenteen/internal/db/sqlc"
	"github.com/tenteen/tenteen/internal/media"
)

// PostgresStore keeps the policy in the upload_settings singleton row.
type PostgresStore struct {
	queries *sqlc.Queries
}

func NewPostgresStore(queries *sqlc.Queries) *PostgresStore {
	return &PostgresStore{queries: queries}
}

func (s *PostgresStore) Load(ctx context.Context) (Policy, error) {
	row, err := s.queries.GetUploadSettings(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultPolicy(), nil
		}
		return Policy{}, err
	}
	return fromRow(row), nil
}

func (s *PostgresStore) Save(ctx context.Context, p Policy) (Policy, error) {
	formats := make([]string, 0, len(p.AllowedFormats))
	for _, f := range p.AllowedFormats {
		formats = append(formats, string(f))
	}
	row, err := s.queries.UpsertUploadSettings(ctx, sqlc.UpsertUploadSettingsParams{
		AutoApproveUploads: p.AutoApprove,
		MaxUploadSizeMb:    int32(p.MaxUploadMB),
		AllowedFormats:     formats,
	})
	if err != nil {
		return Policy{}, err
	}
	return fromRow(row), nil
}

func fromRow(row sqlc.UploadSetting) Policy {
	formats := make([]media.Format, 0, len(row.AllowedFormats))
	for _, f := range row.AllowedFormats {
		formats = append(formats, media.Format(f))
	}
	return Policy{
		AutoApprove:    row.AutoApproveUploads,
		MaxUploadMB:    int(row.MaxUploadSizeMb),
		AllowedFormats: formats,
		UpdatedAt:      db.TimeFromPg(row.UpdatedAt),
	}
}
