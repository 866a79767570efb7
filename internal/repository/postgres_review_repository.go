package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

const reviewColumns = `id, reviewer_id, reviewed_id, rating, comment, project_type, created_at, last_updated_at`

type reviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository instantiates the Postgres review repository.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	const query = `
        INSERT INTO reviews (id, reviewer_id, reviewed_id, rating, comment, project_type, created_at, last_updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.ReviewerID,
		review.ReviewedID,
		review.Rating,
		review.Comment,
		review.ProjectType,
		review.CreatedAt,
		review.LastUpdatedAt,
	)
	return translatePgError(err)
}

func (r *reviewRepository) Update(ctx context.Context, review *domain.Review) error {
	const query = `
        UPDATE reviews SET rating=$1, comment=$2, project_type=$3, last_updated_at=$4
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		review.Rating,
		review.Comment,
		review.ProjectType,
		review.LastUpdatedAt,
		review.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reviewRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	review, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return review, err
}

func (r *reviewRepository) Exists(ctx context.Context, reviewerID, reviewedID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reviews WHERE reviewer_id=$1 AND reviewed_id=$2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, reviewerID, reviewedID).Scan(&exists)
	return exists, err
}

func (r *reviewRepository) List(ctx context.Context, filter ReviewFilter) ([]domain.Review, error) {
	where, args := reviewWhere(filter)
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE ` + where + ` ORDER BY created_at DESC, id`
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

	var reviews []domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	return reviews, rows.Err()
}

func (r *reviewRepository) Count(ctx context.Context, filter ReviewFilter) (int64, error) {
	where, args := reviewWhere(filter)
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *reviewRepository) RatingCounts(ctx context.Context, reviewedID string) (map[int]int64, error) {
	const query = `SELECT rating, COUNT(*) FROM reviews WHERE reviewed_id=$1 GROUP BY rating`
	rows, err := r.pool.Query(ctx, query, reviewedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64, domain.MaxRating)
	for rows.Next() {
		var rating int
		var count int64
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		counts[rating] = count
	}
	return counts, rows.Err()
}

func (r *reviewRepository) DeleteByIdentity(ctx context.Context, identityID string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE reviewer_id=$1 OR reviewed_id=$1`, identityID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func reviewWhere(filter ReviewFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReviewerID != "" {
		args = append(args, filter.ReviewerID)
		clauses = append(clauses, fmt.Sprintf("reviewer_id=$%d", len(args)))
	}
	if filter.ReviewedID != "" {
		args = append(args, filter.ReviewedID)
		clauses = append(clauses, fmt.Sprintf("reviewed_id=$%d", len(args)))
	}
	if filter.MinRating > 0 {
		args = append(args, filter.MinRating)
		clauses = append(clauses, fmt.Sprintf("rating >= $%d", len(args)))
	}
	if filter.ProjectType != domain.ProjectTypeNone {
		args = append(args, filter.ProjectType)
		clauses = append(clauses, fmt.Sprintf("project_type=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var review domain.Review
	if err := row.Scan(
		&review.ID,
		&review.ReviewerID,
		&review.ReviewedID,
		&review.Rating,
		&review.Comment,
		&review.ProjectType,
		&review.CreatedAt,
		&review.LastUpdatedAt,
	); err != nil {
		return nil, err
	}
	return &review, nil
}
