package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	return Open(ctx, cfg.DSN(), cfg.MaxConns)
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Identities ---

// CreateIdentity inserts the identity and all of its faces in one transaction.
func (s *PostgresStore) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	if len(identity.Faces) == 0 {
		return fmt.Errorf("create identity: no faces")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO identities (id, profile, embedding_version, registered_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			identity.ID, identity.Profile, identity.EmbeddingVersion, identity.RegisteredAt, identity.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		for i := range identity.Faces {
			if err := insertFace(ctx, tx, identity.ID, i, &identity.Faces[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertFace(ctx context.Context, tx pgx.Tx, identityID uuid.UUID, position int, f *models.EnrolledFace) error {
	var landmarks []byte
	if len(f.Landmarks) > 0 {
		b, err := json.Marshal(f.Landmarks)
		if err != nil {
			return fmt.Errorf("encode landmarks: %w", err)
		}
		landmarks = b
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO faces (id, identity_id, position, embedding, embedding_version, confidence, landmarks, source_ref, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, identityID, position, pgvector.NewVector(f.Embedding), f.EmbeddingVersion,
		f.Confidence, landmarks, f.SourceRef, f.AddedAt)
	if err != nil {
		return fmt.Errorf("insert face %d: %w", position, err)
	}
	return nil
}

// AppendFace adds a face after the identity's existing ones and bumps
// updated_at to the face's AddedAt.
func (s *PostgresStore) AppendFace(ctx context.Context, identityID uuid.UUID, face *models.EnrolledFace) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM identities WHERE id = $1 FOR UPDATE`, identityID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrIdentityNotFound
		}
		if err != nil {
			return fmt.Errorf("lock identity: %w", err)
		}

		var position int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM faces WHERE identity_id = $1`, identityID,
		).Scan(&position); err != nil {
			return fmt.Errorf("next face position: %w", err)
		}

		if err := insertFace(ctx, tx, identityID, position, face); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE identities SET updated_at = $1 WHERE id = $2`, face.AddedAt, identityID)
		if err != nil {
			return fmt.Errorf("touch identity: %w", err)
		}
		return nil
	})
}

// FindCandidates returns identities with their embeddings in a stable order:
// registration time, then id, then face position.
func (s *PostgresStore) FindCandidates(ctx context.Context, filter models.AttributeFilter) ([]models.Identity, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := profileFilter(filter, 1)
	query := `
		SELECT i.id, i.profile, i.embedding_version, i.registered_at, i.updated_at,
		       f.id, f.embedding::text, f.embedding_version, f.confidence, f.source_ref, f.added_at
		FROM identities i
		JOIN faces f ON f.identity_id = i.id
		` + where + `
		ORDER BY i.registered_at, i.id, f.position`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var (
		out []models.Identity
		now = s.now()
	)
	for rows.Next() {
		var (
			r        identityRow
			faceID   uuid.UUID
			vec      pgvector.Vector
			faceVer  *string
			conf     float32
			ref      string
			faceAdds *time.Time
		)
		if err := rows.Scan(&r.id, &r.profile, &r.version, &r.registeredAt, &r.updatedAt,
			&faceID, &vec, &faceVer, &conf, &ref, &faceAdds); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}

		if len(out) == 0 || out[len(out)-1].ID != r.id {
			out = append(out, r.identity())
		}
		cur := &out[len(out)-1]
		cur.Faces = append(cur.Faces, models.EnrolledFace{
			ID:               faceID,
			SourceRef:        ref,
			Embedding:        vec.Slice(),
			EmbeddingVersion: deref(faceVer),
			Confidence:       conf,
			AddedAt:          derefTime(faceAdds),
		})
		cur.FaceCount = len(cur.Faces)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	for i := range out {
		normalizeIdentity(&out[i], firstAdded(out[i].Faces), now)
	}
	return out, nil
}

// ListIdentities returns identity projections without faces.
func (s *PostgresStore) ListIdentities(ctx context.Context, filter models.AttributeFilter) ([]models.Identity, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := profileFilter(filter, 1)
	query := `
		SELECT i.id, i.profile, i.embedding_version, i.registered_at, i.updated_at,
		       (SELECT COUNT(*) FROM faces f WHERE f.identity_id = i.id),
		       (SELECT f.added_at FROM faces f WHERE f.identity_id = i.id ORDER BY f.position LIMIT 1)
		FROM identities i
		` + where + `
		ORDER BY i.registered_at, i.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var (
		out []models.Identity
		now = s.now()
	)
	for rows.Next() {
		var (
			r     identityRow
			count int
			first *time.Time
		)
		if err := rows.Scan(&r.id, &r.profile, &r.version, &r.registeredAt, &r.updatedAt, &count, &first); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		id := r.identity()
		id.FaceCount = count
		normalizeIdentity(&id, derefTime(first), now)
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// GetIdentity returns the identity with face metadata but no embeddings.
// A missing identity is nil, nil.
func (s *PostgresStore) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	var r identityRow
	err := s.pool.QueryRow(ctx,
		`SELECT id, profile, embedding_version, registered_at, updated_at FROM identities WHERE id = $1`, id,
	).Scan(&r.id, &r.profile, &r.version, &r.registeredAt, &r.updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	identity := r.identity()
	faces, err := s.listFaces(ctx, id)
	if err != nil {
		return nil, err
	}
	identity.Faces = faces
	identity.FaceCount = len(faces)
	normalizeIdentity(&identity, firstAdded(faces), s.now())
	return &identity, nil
}

// GetIdentityByAttribute returns the earliest registered identity whose
// profile attribute key equals value.
func (s *PostgresStore) GetIdentityByAttribute(ctx context.Context, key, value string) (*models.Identity, error) {
	filter := models.AttributeFilter{Key: key, Value: value}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := profileFilter(filter, 1)

	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT i.id FROM identities i `+where+` ORDER BY i.registered_at, i.id LIMIT 1`, args...,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity by %s: %w", key, err)
	}
	return s.GetIdentity(ctx, id)
}

func (s *PostgresStore) listFaces(ctx context.Context, identityID uuid.UUID) ([]models.EnrolledFace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, embedding_version, confidence, landmarks, source_ref, added_at
		 FROM faces WHERE identity_id = $1 ORDER BY position`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.EnrolledFace
	for rows.Next() {
		var (
			f         models.EnrolledFace
			version   *string
			landmarks []byte
			added     *time.Time
		)
		if err := rows.Scan(&f.ID, &version, &f.Confidence, &landmarks, &f.SourceRef, &added); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		if len(landmarks) > 0 {
			if err := json.Unmarshal(landmarks, &f.Landmarks); err != nil {
				return nil, fmt.Errorf("decode landmarks: %w", err)
			}
		}
		f.EmbeddingVersion = deref(version)
		f.AddedAt = derefTime(added)
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// DeleteIdentity removes the identity and its faces and returns the source
// references the faces pointed at.
func (s *PostgresStore) DeleteIdentity(ctx context.Context, id uuid.UUID) ([]string, error) {
	var refs []string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT source_ref FROM faces WHERE identity_id = $1 AND source_ref <> '' ORDER BY position`, id)
		if err != nil {
			return fmt.Errorf("list face refs: %w", err)
		}
		refs, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan face ref: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete identity: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrIdentityNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// BackfillTimestamps persists the read-boundary timestamp defaults for rows
// that lack them and returns how many rows changed.
func (s *PostgresStore) BackfillTimestamps(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		WITH first_face AS (
			SELECT DISTINCT ON (identity_id) identity_id, added_at
			FROM faces
			ORDER BY identity_id, position
		)
		UPDATE identities i
		SET registered_at = COALESCE(i.registered_at, ff.added_at, $1),
		    updated_at    = COALESCE(i.updated_at, i.registered_at, ff.added_at, $1)
		FROM identities i2
		LEFT JOIN first_face ff ON ff.identity_id = i2.id
		WHERE i.id = i2.id
		  AND (i.registered_at IS NULL OR i.updated_at IS NULL)`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("backfill timestamps: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SearchHit is one nearest-neighbour result of SearchNearest.
type SearchHit struct {
	IdentityID uuid.UUID
	FaceID     uuid.UUID
	Profile    models.Profile
	// Score is cosine similarity for cosine versions and distance otherwise.
	Score float64
}

// SearchNearest returns up to limit faces of the given version closest to
// probe, using the pgvector operator matching the version's metric.
func (s *PostgresStore) SearchNearest(ctx context.Context, version embedding.Version, probe []float32, filter models.AttributeFilter, limit int) ([]SearchHit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	op, score := "<=>", "1 - (f.embedding <=> $1)"
	if version.Metric == embedding.Euclidean {
		op, score = "<->", "f.embedding <-> $1"
	}

	where, args := profileFilter(filter, 4)
	if where == "" {
		where = "WHERE "
	} else {
		where += " AND "
	}
	query := fmt.Sprintf(`
		SELECT i.id, f.id, i.profile, %s AS score
		FROM faces f
		JOIN identities i ON i.id = f.identity_id
		%sCOALESCE(f.embedding_version, i.embedding_version) = $2
		  AND vector_dims(f.embedding) = $3
		ORDER BY f.embedding %s $1, i.registered_at, i.id, f.position
		LIMIT %d`, score, where, op, limit)

	args = append([]any{pgvector.NewVector(probe), version.Tag, len(probe)}, args...)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search nearest: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.IdentityID, &h.FaceID, &h.Profile, &h.Score); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return hits, nil
}

// profileFilter renders an equality condition on a profile attribute with
// placeholders starting at argIdx. The zero filter renders nothing.
func profileFilter(filter models.AttributeFilter, argIdx int) (string, []any) {
	if filter.IsZero() {
		return "", nil
	}
	return fmt.Sprintf("WHERE i.profile->>$%d = $%d", argIdx, argIdx+1), []any{filter.Key, filter.Value}
}

// identityRow holds the nullable identity columns of legacy rows.
type identityRow struct {
	id           uuid.UUID
	profile      models.Profile
	version      *string
	registeredAt *time.Time
	updatedAt    *time.Time
}

func (r identityRow) identity() models.Identity {
	return models.Identity{
		ID:               r.id,
		Profile:          r.profile,
		EmbeddingVersion: deref(r.version),
		RegisteredAt:     derefTime(r.registeredAt),
		UpdatedAt:        derefTime(r.updatedAt),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
