package repository

import (
	"context"
	"time"

	distributiondomain "github.com/craftforge/payouts/internal/distribution/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

// trafficRepository aggregates raw page view and download events. Anonymous
// events carry a zero project identifier and are excluded everywhere.
type trafficRepository struct {
	db *gorm.DB
}

func NewTrafficRepository(p Params) distributiondomain.TrafficRepository {
	return &trafficRepository{db: p.DB}
}

type weightRow struct {
	ProjectID int64
	Weight    int64
}

func (r *trafficRepository) ProjectViews(ctx context.Context, start, end time.Time) (map[int64]uint64, error) {
	return r.projectCounts(ctx, "page_views", start, end)
}

func (r *trafficRepository) TotalViews(ctx context.Context, start, end time.Time) (uint64, error) {
	return r.totalCount(ctx, "page_views", start, end)
}

func (r *trafficRepository) ProjectDownloads(ctx context.Context, start, end time.Time) (map[int64]uint64, error) {
	return r.projectCounts(ctx, "downloads", start, end)
}

func (r *trafficRepository) TotalDownloads(ctx context.Context, start, end time.Time) (uint64, error) {
	return r.totalCount(ctx, "downloads", start, end)
}

func (r *trafficRepository) projectCounts(ctx context.Context, table string, start, end time.Time) (map[int64]uint64, error) {
	var rows []weightRow
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT project_id, COUNT(1) AS weight
			FROM `+table+`
			WHERE recorded >= ? AND recorded < ? AND project_id <> 0
			GROUP BY project_id
			ORDER BY weight DESC
		`, start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]uint64, len(rows))
	for _, row := range rows {
		counts[row.ProjectID] = uint64(row.Weight)
	}
	return counts, nil
}

func (r *trafficRepository) totalCount(ctx context.Context, table string, start, end time.Time) (uint64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT COUNT(1)
			FROM `+table+`
			WHERE recorded >= ? AND recorded < ? AND project_id <> 0
		`, start, end).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return uint64(total), nil
}
