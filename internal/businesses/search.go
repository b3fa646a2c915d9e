package businesses

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/pagination"
)

// SearchQuery filters the public directory.
type SearchQuery struct {
	Text     string
	Category string
	City     string
	Limit    int
	Cursor   *pagination.Cursor
}

var searchColumns = []string{
	"id", "owner_id", "name", "description", "category", "phone", "email", "website",
	"address_line1", "city", "state", "postal_code", "status", "rejection_reason",
	"reviewed_at", "reviewed_by", "created_at", "updated_at",
}

// buildSearch renders the directory query. Placeholders are left as '?' so
// gorm rewrites them for the active dialect.
func buildSearch(q SearchQuery) (string, []any, error) {
	builder := sq.StatementBuilder.
		PlaceholderFormat(sq.Question).
		Select(searchColumns...).
		From("businesses").
		Where(sq.Eq{"status": string(enums.BusinessStatusActive)})

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"description": pattern},
		})
	}
	if category := strings.ToLower(strings.TrimSpace(q.Category)); category != "" {
		builder = builder.Where(sq.Eq{"category": category})
	}
	if city := strings.TrimSpace(q.City); city != "" {
		builder = builder.Where(sq.ILike{"city": escapeLike(city)})
	}
	if q.Cursor != nil {
		builder = builder.Where(sq.Expr("(created_at, id) < (?, ?)", q.Cursor.CreatedAt, q.Cursor.ID))
	}

	return builder.
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(pagination.LimitWithBuffer(q.Limit))).
		ToSql()
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// Search returns active businesses matching q, newest first, with one extra
// row for next-page detection.
func (r *Repository) Search(ctx context.Context, q SearchQuery) ([]models.Business, error) {
	statement, args, err := buildSearch(q)
	if err != nil {
		return nil, err
	}
	var rows []models.Business
	if err := r.Handle(ctx, nil).Raw(statement, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
