package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

func TestReviewWhere(t *testing.T) {
	where, args := reviewWhere(ReviewFilter{})
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)

	where, args = reviewWhere(ReviewFilter{ReviewerID: "a", MinRating: 3, ProjectType: domain.ProjectTypeTeamWork})
	assert.Equal(t, "1=1 AND reviewer_id=$1 AND rating >= $2 AND project_type=$3", where)
	assert.Equal(t, []any{"a", 3, domain.ProjectTypeTeamWork}, args)
}

func TestIdentityWhere(t *testing.T) {
	where, args := identityWhere(IdentityFilter{Search: "50%_off", Role: domain.RoleOrdinary})
	assert.Equal(t, "1=1 AND (name ILIKE $1 OR email ILIKE $1) AND role=$2", where)
	assert.Equal(t, []any{`%50\%\_off%`, domain.RoleOrdinary}, args)
}

func TestTranslatePgError(t *testing.T) {
	assert.ErrorIs(t, translatePgError(&pgconn.PgError{Code: "23505"}), ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, translatePgError(other))
	assert.NoError(t, translatePgError(nil))
}
