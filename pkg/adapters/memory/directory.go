package memory

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// Directory is a fixed department list, usually taken from configuration.
type Directory []domain.Department

func (d Directory) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	out := make([]domain.Department, len(d))
	copy(out, d)
	return out, nil
}
