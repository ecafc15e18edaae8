package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenteen/tenteen/internal/db"
	"github.com/tenteen/tenteen/internal/db/sqlc"
	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/storage"
)

var songColumns = []string{
	"id", "hash", "storage_backend", "audio_key", "cover_backend", "cover_key",
	"title", "language", "artist_id", "album_id", "tags", "duration_seconds",
	"bitrate", "format", "size_bytes", "status", "uploaded_by",
	"original_filename", "plays", "created_at", "updated_at",
}

// PostgresStore implements Store on the songs table.
type PostgresStore struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
	logger  *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over pool.
func NewPostgresStore(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{
		pool:    pool,
		queries: queries,
		logger:  log.With(slog.String("service", "catalog")),
	}
}

func (s *PostgresStore) qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, rec NewRecord) (Record, error) {
	artistID, err := db.OptionalUUID(rec.ArtistID)
	if err != nil {
		return Record{}, fmt.Errorf("artist id: %w", err)
	}
	albumID, err := db.OptionalUUID(rec.AlbumID)
	if err != nil {
		return Record{}, fmt.Errorf("album id: %w", err)
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	language := strings.TrimSpace(rec.Language)
	if language == "" {
		language = DefaultLanguage
	}
	var bitrate pgtype.Int4
	if rec.Bitrate != nil {
		bitrate = pgtype.Int4{Int32: int32(*rec.Bitrate), Valid: true}
	}
	var coverBackend pgtype.Text
	if rec.CoverLocator != "" {
		coverBackend = db.TextFrom(string(rec.CoverBackend))
	}
	row, err := s.queries.CreateSong(ctx, sqlc.CreateSongParams{
		Hash:             rec.Digest,
		StorageBackend:   string(rec.StorageBackend),
		AudioKey:         rec.AudioLocator,
		CoverBackend:     coverBackend,
		CoverKey:         db.TextFrom(rec.CoverLocator),
		Title:            rec.Title,
		Language:         language,
		ArtistID:         artistID,
		AlbumID:          albumID,
		Tags:             tags,
		DurationSeconds:  rec.Duration,
		Bitrate:          bitrate,
		Format:           string(rec.Format),
		SizeBytes:        rec.SizeBytes,
		Status:           string(rec.Status),
		UploadedBy:       rec.UploadedBy,
		OriginalFilename: rec.OriginalFilename,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Record{}, fmt.Errorf("%w: digest %s", ErrDuplicate, rec.Digest)
		}
		return Record{}, err
	}
	return toRecord(row), nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Record{}, err
	}
	row, err := s.queries.GetSongByID(ctx, pgID)
	if err != nil {
		return Record{}, notFound(err)
	}
	return toRecord(row), nil
}

// GetByDigest implements Store.
func (s *PostgresStore) GetByDigest(ctx context.Context, digest string) (Record, error) {
	row, err := s.queries.GetSongByHash(ctx, digest)
	if err != nil {
		return Record{}, notFound(err)
	}
	return toRecord(row), nil
}

// SetStatus implements Store.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) (Record, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Record{}, err
	}
	row, err := s.queries.UpdateSongStatus(ctx, sqlc.UpdateSongStatusParams{ID: pgID, Status: string(status)})
	if err != nil {
		return Record{}, notFound(err)
	}
	return toRecord(row), nil
}

// UpdateDetails implements Store.
func (s *PostgresStore) UpdateDetails(ctx context.Context, id string, details Details) (Record, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Record{}, err
	}
	artistID, err := db.OptionalUUID(details.ArtistID)
	if err != nil {
		return Record{}, fmt.Errorf("artist id: %w", err)
	}
	albumID, err := db.OptionalUUID(details.AlbumID)
	if err != nil {
		return Record{}, fmt.Errorf("album id: %w", err)
	}
	tags := details.Tags
	if tags == nil {
		tags = []string{}
	}
	row, err := s.queries.UpdateSongDetails(ctx, sqlc.UpdateSongDetailsParams{
		ID:       pgID,
		Title:    details.Title,
		Language: details.Language,
		ArtistID: artistID,
		AlbumID:  albumID,
		Tags:     tags,
	})
	if err != nil {
		return Record{}, notFound(err)
	}
	return toRecord(row), nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	n, err := s.queries.DeleteSong(ctx, pgID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApproveAllPending implements Store.
func (s *PostgresStore) ApproveAllPending(ctx context.Context) (int64, error) {
	return s.queries.ApproveAllPendingSongs(ctx)
}

// List implements Store. Records are returned newest first.
func (s *PostgresStore) List(ctx context.Context, q ListQuery) (Page, error) {
	q = q.Normalize()
	filter := sq.And{}
	if q.Status != "" {
		filter = append(filter, sq.Eq{"status": string(q.Status)})
	}

	countSQL, countArgs, err := s.qb().Select("count(*)").From("songs").Where(filter).ToSql()
	if err != nil {
		return Page{}, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count songs: %w", err)
	}

	listSQL, listArgs, err := s.qb().Select(songColumns...).From("songs").Where(filter).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64((q.Page - 1) * q.Limit)).
		ToSql()
	if err != nil {
		return Page{}, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return Page{}, fmt.Errorf("list songs: %w", err)
	}
	songs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[sqlc.Song])
	if err != nil {
		return Page{}, fmt.Errorf("scan songs: %w", err)
	}
	items := make([]Record, 0, len(songs))
	for _, song := range songs {
		items = append(items, toRecord(song))
	}
	return Page{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// IncrementPlays implements Store.
func (s *PostgresStore) IncrementPlays(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	return s.queries.IncrementSongPlays(ctx, pgID)
}

// LocatorInUse implements Store. Legacy path-shaped locators match on their
// final element.
func (s *PostgresStore) LocatorInUse(ctx context.Context, backend storage.Backend, locator string) (bool, error) {
	n, err := s.queries.CountSongsByLocator(ctx, sqlc.CountSongsByLocatorParams{
		Backend: string(backend),
		Locator: locator,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func parseID(id string) (pgtype.UUID, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		// Malformed ids cannot exist in the table.
		return pgtype.UUID{}, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(id))
	}
	return pgID, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func toRecord(row sqlc.Song) Record {
	rec := Record{
		ID:               db.UUIDToString(row.ID),
		Digest:           row.Hash,
		StorageBackend:   storage.Backend(row.StorageBackend),
		AudioLocator:     row.AudioKey,
		CoverBackend:     storage.Backend(db.TextToString(row.CoverBackend)),
		CoverLocator:     db.TextToString(row.CoverKey),
		Title:            row.Title,
		Language:         row.Language,
		ArtistID:         db.UUIDToString(row.ArtistID),
		AlbumID:          db.UUIDToString(row.AlbumID),
		Tags:             row.Tags,
		Duration:         row.DurationSeconds,
		Format:           media.Format(row.Format),
		SizeBytes:        row.SizeBytes,
		Status:           Status(row.Status),
		UploadedBy:       row.UploadedBy,
		OriginalFilename: row.OriginalFilename,
		Plays:            row.Plays,
		CreatedAt:        db.TimeFromPg(row.CreatedAt),
		UpdatedAt:        db.TimeFromPg(row.UpdatedAt),
	}
	if rec.CoverLocator != "" && rec.CoverBackend == "" {
		rec.CoverBackend = storage.BackendLocal
	}
	rec.HasCover = rec.CoverLocator != ""
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if row.Bitrate.Valid {
		bitrate := int(row.Bitrate.Int32)
		rec.Bitrate = &bitrate
	}
	return rec
}
