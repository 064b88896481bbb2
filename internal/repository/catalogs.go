package repository

import (
	"encoding/json"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

// InsertCatalog 保存一份新的目录，目录整体以 JSONB 存储，读取时总是取最新的一份
func (r *Repository) InsertCatalog(name string, catalog *domain.Catalog) error {
	content, err := json.Marshal(catalog)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO catalogs (name, content)
		VALUES ($1, $2)
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, name, content); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetLatestCatalog() (*domain.Catalog, error) {
	query := `
		SELECT content FROM catalogs
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var content []byte
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&content); err != nil {
		return nil, err
	}

	catalog := &domain.Catalog{}
	if err := json.Unmarshal(content, catalog); err != nil {
		return nil, err
	}

	return catalog, nil
}
