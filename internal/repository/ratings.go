package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
)

// RatingsRepository provides persistence helpers for restaurant ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

const ratingColumns = `
    id,
    restaurant_name,
    restaurant_type,
    restaurant_address,
    rating,
    meal,
    calories,
    city,
    user_id,
    date_posted
`

var ratingSelect = []interface{}{
	"id",
	"restaurant_name",
	"restaurant_type",
	"restaurant_address",
	"rating",
	"meal",
	"calories",
	"city",
	"user_id",
	"date_posted",
}

var pg = goqu.Dialect("postgres")

// RatingCreateParams bundles the fields required to create a rating.
type RatingCreateParams struct {
	RestaurantName    string
	RestaurantType    string
	RestaurantAddress string
	Value             int
	Meal              string
	Calories          int
	City              string
	UserID            *int64
}

// RatingUpdateParams carries a partial update. Nil fields are left unchanged.
type RatingUpdateParams struct {
	RestaurantName    *string
	RestaurantType    *string
	RestaurantAddress *string
	Value             *int
	Meal              *string
	Calories          *int
	City              *string
	UserID            *int64
}

// RatingListFilters narrows List results. All set filters apply together.
type RatingListFilters struct {
	RestaurantName *string
	RestaurantType *string
	MinRating      *int
	MaxRating      *int
}

// Create inserts a new rating row and returns the stored entity.
func (r *RatingsRepository) Create(ctx context.Context, params RatingCreateParams) (domain.Rating, error) {
	query := fmt.Sprintf(`
        INSERT INTO ratings (restaurant_name, restaurant_type, restaurant_address, rating, meal, calories, city, user_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, ratingColumns)

	row := r.pool.QueryRow(ctx, query,
		params.RestaurantName,
		params.RestaurantType,
		params.RestaurantAddress,
		params.Value,
		params.Meal,
		params.Calories,
		params.City,
		params.UserID,
	)
	rating, err := scanRating(row)
	if err != nil {
		if isConstraintViolation(err) {
			return domain.Rating{}, fmt.Errorf("create rating: %w", ErrConflict)
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// GetByID fetches a rating by its identifier.
func (r *RatingsRepository) GetByID(ctx context.Context, id int64) (domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE id = $1`, ratingColumns)
	rating, err := scanRating(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// List returns ratings matching the filters in insertion order.
func (r *RatingsRepository) List(ctx context.Context, filters RatingListFilters) ([]domain.Rating, error) {
	where := make([]exp.Expression, 0, 4)
	if filters.RestaurantName != nil && strings.TrimSpace(*filters.RestaurantName) != "" {
		where = append(where, goqu.C("restaurant_name").ILike(containsPattern(*filters.RestaurantName)))
	}
	if filters.RestaurantType != nil && strings.TrimSpace(*filters.RestaurantType) != "" {
		where = append(where, goqu.C("restaurant_type").ILike(containsPattern(*filters.RestaurantType)))
	}
	if filters.MinRating != nil {
		where = append(where, goqu.C("rating").Gte(*filters.MinRating))
	}
	if filters.MaxRating != nil {
		where = append(where, goqu.C("rating").Lte(*filters.MaxRating))
	}

	ds := pg.From("ratings").Select(ratingSelect...).Order(goqu.C("id").Asc()).Prepared(true)
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return r.queryRatings(ctx, query, args...)
}

// ListByUser returns every rating owned by userID in insertion order.
func (r *RatingsRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE user_id = $1 ORDER BY id`, ratingColumns)
	return r.queryRatings(ctx, query, userID)
}

// Update applies a partial update in a single statement. date_posted is never touched.
func (r *RatingsRepository) Update(ctx context.Context, id int64, params RatingUpdateParams) (domain.Rating, error) {
	query := fmt.Sprintf(`
        UPDATE ratings
        SET restaurant_name = COALESCE($2, restaurant_name),
            restaurant_type = COALESCE($3, restaurant_type),
            restaurant_address = COALESCE($4, restaurant_address),
            rating = COALESCE($5, rating),
            meal = COALESCE($6, meal),
            calories = COALESCE($7, calories),
            city = COALESCE($8, city),
            user_id = COALESCE($9, user_id)
        WHERE id = $1
        RETURNING %s
    `, ratingColumns)

	row := r.pool.QueryRow(ctx, query,
		id,
		params.RestaurantName,
		params.RestaurantType,
		params.RestaurantAddress,
		params.Value,
		params.Meal,
		params.Calories,
		params.City,
		params.UserID,
	)
	rating, err := scanRating(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		if isConstraintViolation(err) {
			return domain.Rating{}, fmt.Errorf("update rating %d: %w", id, ErrConflict)
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// Delete permanently removes a rating.
func (r *RatingsRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ratings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Averages returns the mean rating per restaurant name, rounded to two decimals.
func (r *RatingsRepository) Averages(ctx context.Context) ([]domain.RestaurantAverage, error) {
	const query = `
        SELECT restaurant_name,
               ROUND(AVG(rating)::numeric, 2)::float8 AS average_rating
        FROM ratings
        GROUP BY restaurant_name
        ORDER BY restaurant_name
    `
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	defer rows.Close()

	results := make([]domain.RestaurantAverage, 0)
	for rows.Next() {
		var avg domain.RestaurantAverage
		if err := rows.Scan(&avg.RestaurantName, &avg.Average); err != nil {
			return nil, fmt.Errorf("scan average: %w", err)
		}
		results = append(results, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	return results, nil
}

// AverageByName averages the first restaurant (by name) whose name contains
// the needle. Matching ignores case and punctuation, so "marios" matches
// "Mario's Pizzeria". Only ASCII letters, digits and spaces are compared, which
// keeps both sides independent of the database locale.
func (r *RatingsRepository) AverageByName(ctx context.Context, name string) (domain.RestaurantAverage, error) {
	needle := normalizeName(name)
	if needle == "" {
		return domain.RestaurantAverage{}, ErrNotFound
	}

	const query = `
        SELECT restaurant_name,
               ROUND(AVG(rating)::numeric, 2)::float8 AS average_rating
        FROM ratings
        WHERE regexp_replace(lower(restaurant_name), '[^a-z0-9 ]', '', 'g') LIKE $1
        GROUP BY restaurant_name
        ORDER BY restaurant_name
        LIMIT 1
    `
	var avg domain.RestaurantAverage
	err := r.pool.QueryRow(ctx, query, "%"+needle+"%").Scan(&avg.RestaurantName, &avg.Average)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RestaurantAverage{}, ErrNotFound
		}
		return domain.RestaurantAverage{}, fmt.Errorf("average rating by name: %w", err)
	}
	return avg, nil
}

func (r *RatingsRepository) queryRatings(ctx context.Context, query string, args ...interface{}) ([]domain.Rating, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var (
		rating     domain.Rating
		userID     *int64
		datePosted time.Time
	)

	err := row.Scan(
		&rating.ID,
		&rating.RestaurantName,
		&rating.RestaurantType,
		&rating.RestaurantAddress,
		&rating.Value,
		&rating.Meal,
		&rating.Calories,
		&rating.City,
		&userID,
		&datePosted,
	)
	if err != nil {
		return domain.Rating{}, err
	}

	rating.UserID = userID
	rating.DatePosted = datePosted.UTC()
	return rating, nil
}

// containsPattern builds an ILIKE pattern matching value anywhere, with LIKE
// metacharacters in value taken literally.
func containsPattern(value string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(strings.TrimSpace(value)) + "%"
}

// normalizeName mirrors the SQL side of AverageByName: lowercase, then keep
// only ASCII letters, digits and spaces.
func normalizeName(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
