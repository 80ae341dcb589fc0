package sql

import (
	"context"
	"fmt"

	"github.com/aretw0/botflow/pkg/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Directory implements ports.DepartmentDirectory over the departments table.
type Directory struct {
	db *gorm.DB
}

// NewDirectory wraps an opened, migrated connection.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// ListDepartments returns every department ordered by name.
func (d *Directory) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	var rows []departmentRow
	if err := d.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql: list departments: %w", err)
	}
	out := make([]domain.Department, len(rows))
	for i, r := range rows {
		out[i] = domain.Department{ID: r.ID, Name: r.Name, Description: r.Description}
	}
	return out, nil
}

// Seed upserts departments by id, e.g. from configuration.
func (d *Directory) Seed(ctx context.Context, deps []domain.Department) error {
	if len(deps) == 0 {
		return nil
	}
	rows := make([]departmentRow, len(deps))
	for i, dep := range deps {
		rows[i] = departmentRow{ID: dep.ID, Name: dep.Name, Description: dep.Description}
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("sql: seed departments: %w", err)
	}
	return nil
}
