package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MonetizationStatus of a project; only monetized projects participate in
// distribution runs.
type MonetizationStatus string

const (
	MonetizationStatusMonetized   MonetizationStatus = "monetized"
	MonetizationStatusDemonetized MonetizationStatus = "demonetized"
)

// PayoutRecord is one append-only ledger row written by a distribution run.
// Existence of any record for a day is the idempotency guard for that day.
type PayoutRecord struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	UserID    int64           `gorm:"not null;index;uniqueIndex:ux_payout_records_user_project_day,priority:1"`
	ProjectID int64           `gorm:"not null;uniqueIndex:ux_payout_records_user_project_day,priority:2"`
	Amount    decimal.Decimal `gorm:"type:numeric;not null"`
	Day       time.Time       `gorm:"not null;index;uniqueIndex:ux_payout_records_user_project_day,priority:3"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PayoutRecord) TableName() string { return "payout_records" }

// ProjectWeights aggregates one day of traffic per project. Weight is the
// project's view count plus download count.
type ProjectWeights struct {
	Total     uint64
	ByProject map[int64]uint64
}

// TeamMember pairs a user with their relative payout split for one project.
type TeamMember struct {
	UserID int64
	Split  decimal.Decimal
}

// Service runs the daily payout distribution.
type Service interface {
	// RunOnce distributes the day budget for targetDay (UTC midnight). A day
	// that already has payout records is a successful no-op.
	RunOnce(ctx context.Context, targetDay time.Time) error
}

// TrafficRepository reads aggregate traffic counts from the analytics store
// over a half-open interval, excluding anonymous (zero) project identifiers.
type TrafficRepository interface {
	ProjectViews(ctx context.Context, start, end time.Time) (map[int64]uint64, error)
	TotalViews(ctx context.Context, start, end time.Time) (uint64, error)
	ProjectDownloads(ctx context.Context, start, end time.Time) (map[int64]uint64, error)
	TotalDownloads(ctx context.Context, start, end time.Time) (uint64, error)
}

// CacheInvalidator drops downstream cached profile/balance data for the given
// users after a run commits.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs []int64) error
}
