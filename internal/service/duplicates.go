package service

import (
	"context"
	"sort"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/warehouse"
)

// DuplicateChecker finds ids of a batch that the target table already holds
type DuplicateChecker struct {
	warehouse warehouse.Warehouse
}

// NewDuplicateChecker creates a new duplicate checker
func NewDuplicateChecker(wh warehouse.Warehouse) *DuplicateChecker {
	return &DuplicateChecker{warehouse: wh}
}

// FindExistingIDs issues one membership query for the whole batch and returns
// the colliding ids in ascending order. Records must already be validated.
func (d *DuplicateChecker) FindExistingIDs(ctx context.Context, table string, records []model.Record) ([]int64, error) {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		if id, ok := r.ID(); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []int64{}, nil
	}

	existing, err := d.warehouse.ExistingIDs(ctx, table, ids)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(existing))
	found := make([]int64, 0, len(existing))
	for _, id := range existing {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		found = append(found, id)
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return found, nil
}
