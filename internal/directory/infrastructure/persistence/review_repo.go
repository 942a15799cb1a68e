package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

const reviewColumns = `id, business_id, user_id, rating, comment, created_at, updated_at`

// ReviewRepository implements domain.ReviewRepository. The unique
// (business_id, user_id) index backs the one-review-per-user rule.
type ReviewRepository struct {
	conn database.Connection
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(conn database.Connection) *ReviewRepository {
	return &ReviewRepository{conn: conn}
}

// Insert stores a new review.
func (r *ReviewRepository) Insert(ctx context.Context, review *domain.Review) error {
	const op = "reviews.insert"
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		review.ID,
		review.BusinessID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.CreatedAt.UTC(),
		review.UpdatedAt.UTC(),
	)
	if database.IsUniqueViolation(err) {
		return sharedDomain.Wrap(err, sharedDomain.EDUPLICATEREVIEW, op, "business already reviewed by user")
	}
	return sharedDomain.Storage(err, op)
}

// Update stores a changed rating and comment.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	const op = "reviews.update"
	query := database.Rebind(r.conn.Driver(), `
		UPDATE reviews SET rating = ?, comment = ?, updated_at = ? WHERE id = ?
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	res, err := exec.Exec(ctx, query, review.Rating, review.Comment, review.UpdatedAt.UTC(), review.ID)
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	return affected(res, op, review.ID)
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "reviews.delete"
	exec := database.ExecutorFromContext(ctx, r.conn)
	res, err := exec.Exec(ctx, database.Rebind(r.conn.Driver(), `DELETE FROM reviews WHERE id = ?`), id)
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	return affected(res, op, id)
}

func affected(res database.Result, op string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	if n == 0 {
		return sharedDomain.NotFound(op, "review", id.String())
	}
	return nil
}

// FindByID retrieves a review.
func (r *ReviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	const op = "reviews.find"
	query := database.Rebind(r.conn.Driver(), `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	review, err := scanReview(exec.QueryRow(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sharedDomain.NotFound(op, "review", id.String())
		}
		return nil, sharedDomain.Storage(err, op)
	}
	return review, nil
}

// Exists reports whether the user already reviewed the business.
func (r *ReviewRepository) Exists(ctx context.Context, businessID, userID uuid.UUID) (bool, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT COUNT(*) FROM reviews WHERE business_id = ? AND user_id = ?
	`)

	var n int
	exec := database.ExecutorFromContext(ctx, r.conn)
	if err := exec.QueryRow(ctx, query, businessID, userID).Scan(&n); err != nil {
		return false, sharedDomain.Storage(err, "reviews.exists")
	}
	return n > 0, nil
}

// ListByBusiness returns one page of a business's reviews, newest first.
func (r *ReviewRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	return r.page(ctx, "reviews.list_by_business", "business_id", businessID, limit, offset)
}

// ListByUser returns one page of a user's reviews, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	return r.page(ctx, "reviews.list_by_user", "user_id", userID, limit, offset)
}

// page lists reviews by one id column; col is always a constant.
func (r *ReviewRepository) page(ctx context.Context, op, col string, id uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)

	var total int
	countQuery := database.Rebind(r.conn.Driver(), `SELECT COUNT(*) FROM reviews WHERE `+col+` = ?`)
	if err := exec.QueryRow(ctx, countQuery, id).Scan(&total); err != nil {
		return nil, 0, sharedDomain.Storage(err, op)
	}

	query := database.Rebind(r.conn.Driver(), `
		SELECT `+reviewColumns+` FROM reviews
		WHERE `+col+` = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`)
	rows, err := exec.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, 0, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	reviews := []*domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, sharedDomain.Storage(err, op)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, sharedDomain.Storage(err, op)
	}
	return reviews, total, nil
}

// Summary aggregates a business's ratings.
func (r *ReviewRepository) Summary(ctx context.Context, businessID uuid.UUID) (domain.RatingSummary, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT COALESCE(AVG(CAST(rating AS DOUBLE PRECISION)), 0), COUNT(*)
		FROM reviews WHERE business_id = ?
	`)

	var s domain.RatingSummary
	exec := database.ExecutorFromContext(ctx, r.conn)
	if err := exec.QueryRow(ctx, query, businessID).Scan(&s.Average, &s.Count); err != nil {
		return domain.RatingSummary{}, sharedDomain.Storage(err, "reviews.summary")
	}
	return s, nil
}

func scanReview(row database.Row) (*domain.Review, error) {
	var review domain.Review
	if err := row.Scan(
		&review.ID,
		&review.BusinessID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	); err != nil {
		return nil, err
	}
	review.CreatedAt = review.CreatedAt.UTC()
	review.UpdatedAt = review.UpdatedAt.UTC()
	return &review, nil
}
