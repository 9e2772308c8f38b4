package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	if err := executeMigrationSQL(ctx, p, "pre-auto-migrate", preAutoMigrateSQL); err != nil {
		return err
	}

	if err := p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}

	if err := executeMigrationSQL(ctx, p, "post-auto-migrate", postAutoMigrateSQL); err != nil {
		return err
	}

	return nil
}

// SourceNameCityUnique reports whether the (name, city_id) unique index is in
// place. It is skipped at migration time while duplicate pairs exist.
func (p *Pool) SourceNameCityUnique(ctx context.Context) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'sources_name_city_key')`

	var exists bool
	if err := p.QueryRow(ctx, q).Scan(&exists); err != nil {
		return false, fmt.Errorf("check sources_name_city_key: %w", classifyError(err))
	}
	return exists, nil
}

func executeMigrationSQL(ctx context.Context, p *Pool, label, sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Exec(trimmed).Error; err != nil {
		return fmt.Errorf("execute %s SQL: %w", label, err)
	}
	return nil
}
