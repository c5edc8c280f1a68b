package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallwart/shopkeeper/internal/domain"
)

// TemplateRepository implements shop template storage for PostgreSQL
type TemplateRepository struct {
	db *pgxpool.Pool
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// templateItemRow is the JSON shape of one template item in the items column.
type templateItemRow struct {
	Stack     domain.ItemStack `json:"stack"`
	BuyPrice  float64          `json:"buy_price"`
	SellPrice *float64         `json:"sell_price,omitempty"`
	Currency  string           `json:"currency"`
	Stock     int              `json:"stock"`
}

// Save upserts a template row.
func (r *TemplateRepository) Save(ctx context.Context, tpl *domain.ShopTemplate) error {
	items := make([]templateItemRow, len(tpl.Items))
	for i, item := range tpl.Items {
		items[i] = templateItemRow(item)
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: failed to encode template items: %v", domain.ErrPersistence, err)
	}
	metaJSON, err := json.Marshal(tpl.Metadata)
	if err != nil {
		return fmt.Errorf("%w: failed to encode template metadata: %v", domain.ErrPersistence, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO shop_templates (template_id, template_name, description, is_admin, creator, category, version, created_at, metadata, items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (template_id) DO UPDATE
		SET template_name = EXCLUDED.template_name,
		    description = EXCLUDED.description,
		    version = EXCLUDED.version,
		    metadata = EXCLUDED.metadata,
		    items = EXCLUDED.items`,
		tpl.ID, tpl.Name, tpl.Description, tpl.Admin, tpl.Creator, tpl.Category, tpl.Version, tpl.CreatedAt, metaJSON, itemsJSON)
	if err != nil {
		return fmt.Errorf("%w: failed to save template: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Get loads one template by id.
func (r *TemplateRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ShopTemplate, error) {
	row := r.db.QueryRow(ctx, `
		SELECT template_id, template_name, description, is_admin, creator, category, version, created_at, metadata, items
		FROM shop_templates WHERE template_id = $1`, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: template %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return tpl, nil
}

// List returns all stored templates.
func (r *TemplateRepository) List(ctx context.Context) ([]*domain.ShopTemplate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT template_id, template_name, description, is_admin, creator, category, version, created_at, metadata, items
		FROM shop_templates ORDER BY template_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query templates: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*domain.ShopTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read template rows: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

// Delete removes a template row.
func (r *TemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shop_templates WHERE template_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete template: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: template %s", domain.ErrNotFound, id)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*domain.ShopTemplate, error) {
	var (
		id                                   uuid.UUID
		name, description, creator, category string
		admin                                bool
		version                              int
		createdAt                            time.Time
		metaJSON, itemsJSON                  []byte
	)
	if err := row.Scan(&id, &name, &description, &admin, &creator, &category, &version, &createdAt, &metaJSON, &itemsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to scan template row: %v", domain.ErrPersistence, err)
	}

	var metadata map[string]string
	if err := json.Unmarshal(metaJSON, &metadata); err != nil {
		return nil, fmt.Errorf("%w: failed to decode template metadata: %v", domain.ErrPersistence, err)
	}
	var itemRows []templateItemRow
	if err := json.Unmarshal(itemsJSON, &itemRows); err != nil {
		return nil, fmt.Errorf("%w: failed to decode template items: %v", domain.ErrPersistence, err)
	}
	items := make([]domain.TemplateItem, len(itemRows))
	for i, ir := range itemRows {
		items[i] = domain.TemplateItem(ir)
	}

	tpl, err := domain.RebuildTemplate(id, name, description, creator, category, admin, version, createdAt, metadata, items)
	if err != nil {
		return nil, fmt.Errorf("%w: stored template invalid: %v", domain.ErrPersistence, err)
	}
	return tpl, nil
}
