package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

const pgUniqueViolation = "23505"

const identityColumns = `id, email, name, password_hash, role, email_verified, faculty, department,
               COALESCE(verification_token, ''), verification_expires_at, created_at`

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (id, email, name, password_hash, role, email_verified, faculty, department,
                                verification_token, verification_expires_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,$11)`

	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Email,
		identity.Name,
		identity.PasswordHash,
		identity.Role,
		identity.EmailVerified,
		identity.Faculty,
		identity.Department,
		identity.VerificationToken,
		identity.VerificationExpiresAt,
		identity.CreatedAt,
	)
	return translatePgError(err)
}

func (r *identityRepository) Update(ctx context.Context, identity *domain.Identity) error {
	const query = `
        UPDATE identities SET email=$1, name=$2, password_hash=$3, role=$4, email_verified=$5,
            faculty=$6, department=$7, verification_token=NULLIF($8,''), verification_expires_at=$9
        WHERE id=$10`

	cmd, err := r.pool.Exec(ctx, query,
		identity.Email,
		identity.Name,
		identity.PasswordHash,
		identity.Role,
		identity.EmailVerified,
		identity.Faculty,
		identity.Department,
		identity.VerificationToken,
		identity.VerificationExpiresAt,
		identity.ID,
	)
	if err != nil {
		return translatePgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.fetchSingle(ctx, `SELECT `+identityColumns+` FROM identities WHERE id=$1`, id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.fetchSingle(ctx, `SELECT `+identityColumns+` FROM identities WHERE email=$1`, domain.NormalizeEmail(email))
}

func (r *identityRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+identityColumns+` FROM identities WHERE verification_token=$1`, token)
}

func (r *identityRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Identity, error) {
	out := make(map[string]*domain.Identity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out[identity.ID] = identity
	}
	return out, rows.Err()
}

func (r *identityRepository) List(ctx context.Context, filter IdentityFilter) ([]domain.Identity, error) {
	where, args := identityWhere(filter)
	query := `SELECT ` + identityColumns + ` FROM identities WHERE ` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	return identities, rows.Err()
}

func (r *identityRepository) Count(ctx context.Context, filter IdentityFilter) (int64, error) {
	where, args := identityWhere(filter)
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *identityRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return identity, err
}

func identityWhere(filter IdentityFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&identity.PasswordHash,
		&identity.Role,
		&identity.EmailVerified,
		&identity.Faculty,
		&identity.Department,
		&identity.VerificationToken,
		&identity.VerificationExpiresAt,
		&identity.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &identity, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
