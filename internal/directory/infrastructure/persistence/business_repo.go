// Package persistence implements the directory repositories over the shared
// database connection.
package persistence

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

const businessColumns = `b.id, b.name, b.description, b.address, b.city, b.state, b.zip_code, b.phone,
	b.website, b.category, b.minority_type, b.is_verified, b.google_place_id, b.latitude, b.longitude,
	b.image_url, b.hours, b.created_at, b.updated_at`

// ratingColumns aggregate the joined reviews; the cast keeps AVG a float on
// PostgreSQL.
const ratingColumns = `COALESCE(AVG(CAST(r.rating AS DOUBLE PRECISION)), 0), COUNT(r.id)`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BusinessRepository implements domain.BusinessRepository.
type BusinessRepository struct {
	conn database.Connection
}

// NewBusinessRepository creates a new business repository.
func NewBusinessRepository(conn database.Connection) *BusinessRepository {
	return &BusinessRepository{conn: conn}
}

// Save inserts or updates a business.
func (r *BusinessRepository) Save(ctx context.Context, b *domain.Business) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO businesses (id, name, description, address, city, state, zip_code, phone,
			website, category, minority_type, is_verified, google_place_id, latitude, longitude,
			image_url, hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			address = excluded.address,
			city = excluded.city,
			state = excluded.state,
			zip_code = excluded.zip_code,
			phone = excluded.phone,
			website = excluded.website,
			category = excluded.category,
			minority_type = excluded.minority_type,
			is_verified = excluded.is_verified,
			google_place_id = excluded.google_place_id,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			image_url = excluded.image_url,
			hours = excluded.hours,
			updated_at = excluded.updated_at
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		b.ID,
		b.Name,
		b.Description,
		b.Address,
		b.City,
		b.State,
		b.ZipCode,
		b.Phone,
		b.Website,
		b.Category,
		b.MinorityType,
		b.Verified,
		b.GooglePlaceID,
		nullFloat(b.Latitude),
		nullFloat(b.Longitude),
		b.ImageURL,
		b.Hours,
		b.CreatedAt.UTC(),
		b.UpdatedAt.UTC(),
	)
	return sharedDomain.Storage(err, "businesses.save")
}

// FindByID retrieves a business.
func (r *BusinessRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	const op = "businesses.find"
	query := database.Rebind(r.conn.Driver(), `SELECT `+businessColumns+` FROM businesses b WHERE b.id = ?`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	b, err := scanBusiness(exec.QueryRow(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sharedDomain.NotFound(op, "business", id.String())
		}
		return nil, sharedDomain.Storage(err, op)
	}
	return b, nil
}

// Delete removes the business and its reviews.
func (r *BusinessRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "businesses.delete"
	exec := database.ExecutorFromContext(ctx, r.conn)

	if _, err := exec.Exec(ctx, database.Rebind(r.conn.Driver(), `DELETE FROM reviews WHERE business_id = ?`), id); err != nil {
		return sharedDomain.Storage(err, op)
	}
	res, err := exec.Exec(ctx, database.Rebind(r.conn.Driver(), `DELETE FROM businesses WHERE id = ?`), id)
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	if n == 0 {
		return sharedDomain.NotFound(op, "business", id.String())
	}
	return nil
}

// Search returns one page of listings ordered by name and the total match count.
func (r *BusinessRepository) Search(ctx context.Context, filter domain.SearchFilter) ([]*domain.Listing, int, error) {
	const op = "businesses.search"
	where, args := searchClause(filter)
	exec := database.ExecutorFromContext(ctx, r.conn)

	var total int
	countQuery := database.Rebind(r.conn.Driver(), `SELECT COUNT(*) FROM businesses b`+where)
	if err := exec.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, sharedDomain.Storage(err, op)
	}

	query := database.Rebind(r.conn.Driver(), `
		SELECT `+businessColumns+`, `+ratingColumns+`
		FROM businesses b
		LEFT JOIN reviews r ON r.business_id = b.id`+where+`
		GROUP BY b.id
		ORDER BY b.name, b.id
		LIMIT ? OFFSET ?
	`)
	rows, err := exec.Query(ctx, query, append(args, filter.PerPage, filter.Offset())...)
	if err != nil {
		return nil, 0, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	listings := []*domain.Listing{}
	for rows.Next() {
		var summary domain.RatingSummary
		b, err := scanBusiness(rows, &summary.Average, &summary.Count)
		if err != nil {
			return nil, 0, sharedDomain.Storage(err, op)
		}
		listings = append(listings, &domain.Listing{Business: b, Rating: summary})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, sharedDomain.Storage(err, op)
	}
	return listings, total, nil
}

func searchClause(f domain.SearchFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	exact := func(col, v string) {
		if v != "" {
			conds = append(conds, "LOWER(b."+col+") = ?")
			args = append(args, strings.ToLower(v))
		}
	}
	exact("city", f.City)
	exact("state", f.State)
	exact("category", f.Category)
	exact("minority_type", f.MinorityType)

	if f.Term != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Term)) + "%"
		conds = append(conds, `(LOWER(b.name) LIKE ? ESCAPE '\' OR LOWER(b.description) LIKE ? ESCAPE '\' OR LOWER(b.category) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Categories lists the distinct categories in use.
func (r *BusinessRepository) Categories(ctx context.Context) ([]string, error) {
	const op = "businesses.categories"
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `SELECT DISTINCT category FROM businesses WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return categories, nil
}

// Cities lists the distinct city and state pairs in use.
func (r *BusinessRepository) Cities(ctx context.Context) ([]domain.CityState, error) {
	const op = "businesses.cities"
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT DISTINCT city, state FROM businesses
		WHERE city <> '' AND state <> ''
		ORDER BY state, city
	`)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	cities := []domain.CityState{}
	for rows.Next() {
		var c domain.CityState
		if err := rows.Scan(&c.City, &c.State); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return cities, nil
}

// Peers lists the ids of a category's businesses, oldest first.
func (r *BusinessRepository) Peers(ctx context.Context, category string) ([]uuid.UUID, error) {
	const op = "businesses.peers"
	query := database.Rebind(r.conn.Driver(), `
		SELECT id FROM businesses WHERE category = ? ORDER BY created_at, id
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, category)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return ids, nil
}

// scanBusiness scans the business columns followed by any extra columns.
func scanBusiness(row database.Row, extra ...any) (*domain.Business, error) {
	var (
		b        domain.Business
		lat, lng sql.NullFloat64
	)
	dest := []any{
		&b.ID,
		&b.Name,
		&b.Description,
		&b.Address,
		&b.City,
		&b.State,
		&b.ZipCode,
		&b.Phone,
		&b.Website,
		&b.Category,
		&b.MinorityType,
		&b.Verified,
		&b.GooglePlaceID,
		&lat,
		&lng,
		&b.ImageURL,
		&b.Hours,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.Latitude = floatPtr(lat)
	b.Longitude = floatPtr(lng)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
