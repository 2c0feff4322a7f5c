package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	distributiondomain "github.com/craftforge/payouts/internal/distribution/domain"
	obsmetrics "github.com/craftforge/payouts/internal/observability/metrics"
	"github.com/craftforge/payouts/internal/userlock"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Traffic     distributiondomain.TrafficRepository
	Invalidator distributiondomain.CacheInvalidator `optional:"true"`
	Locks       *userlock.Registry
	Policy      *config.PayoutPolicyHolder
	GenID       *snowflake.Node
	Clock       clock.Clock
	Log         *zap.Logger
}

type Service struct {
	db          *gorm.DB
	traffic     distributiondomain.TrafficRepository
	invalidator distributiondomain.CacheInvalidator
	locks       *userlock.Registry
	policy      *config.PayoutPolicyHolder
	genID       *snowflake.Node
	clock       clock.Clock
	log         *zap.Logger
}

func NewService(p Params) distributiondomain.Service {
	return &Service{
		db:          p.DB,
		traffic:     p.Traffic,
		invalidator: p.Invalidator,
		locks:       p.Locks,
		policy:      p.Policy,
		genID:       p.GenID,
		clock:       p.Clock,
		log:         p.Log.Named("distribution.service"),
	}
}

type pendingPayout struct {
	UserID    int64
	ProjectID int64
	Amount    decimal.Decimal
}

// RunOnce distributes the configured day budget for targetDay across projects
// by traffic weight, and across each project's team by payout split. Rerunning
// a day that already has records is a no-op.
func (s *Service) RunOnce(ctx context.Context, targetDay time.Time) error {
	day := time.Date(targetDay.Year(), targetDay.Month(), targetDay.Day(), 0, 0, 0, 0, time.UTC)
	log := s.log.With(zap.Time("day", day))

	done, err := s.dayAlreadyDistributed(ctx, day)
	if err != nil {
		obsmetrics.IncDistributionRun(obsmetrics.ResultError)
		return storeFailure("check existing payout records", err)
	}
	if done {
		log.Info("payout records already exist, skipping run")
		obsmetrics.IncDistributionRun(obsmetrics.ResultSkipped)
		return nil
	}

	weights, err := s.fetchWeights(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		obsmetrics.IncDistributionRun(obsmetrics.ResultError)
		return storeFailure("fetch traffic aggregates", err)
	}
	if weights.Total == 0 || len(weights.ByProject) == 0 {
		log.Info("no monetizable traffic recorded, nothing to distribute")
		obsmetrics.IncDistributionRun(obsmetrics.ResultSkipped)
		return nil
	}

	teams, err := s.loadTeams(ctx, weights)
	if err != nil {
		obsmetrics.IncDistributionRun(obsmetrics.ResultError)
		return storeFailure("load team splits", err)
	}

	dayAmount := dailyPayoutAmount(decimal.NewFromInt(s.policy.Get().BudgetUSD), day)
	pending := computePayouts(dayAmount, weights, teams)
	if len(pending) == 0 {
		log.Info("no positive payouts computed, nothing to distribute")
		obsmetrics.IncDistributionRun(obsmetrics.ResultSkipped)
		return nil
	}

	userIDs := affectedUsers(pending)
	unlock := s.lockUsers(userIDs)
	err = s.persist(ctx, day, pending)
	unlock()
	if err != nil {
		obsmetrics.IncDistributionRun(obsmetrics.ResultError)
		return storeFailure("persist payouts", err)
	}

	log.Info("distribution run committed",
		zap.Int("entries", len(pending)),
		zap.Int("users", len(userIDs)),
		zap.String("day_amount", dayAmount.StringFixed(4)),
	)
	obsmetrics.IncDistributionRun(obsmetrics.ResultSuccess)
	obsmetrics.AddDistributionEntries(len(pending))

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, userIDs); err != nil {
			return fmt.Errorf("invalidate user caches after commit: %w", err)
		}
	}

	return nil
}

func (s *Service) dayAlreadyDistributed(ctx context.Context, day time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Raw(`SELECT COUNT(1) FROM payout_records WHERE day = ?`, day).
		Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// fetchWeights runs the four traffic aggregations concurrently and merges the
// per-project counts. A project's weight is its views plus downloads.
func (s *Service) fetchWeights(ctx context.Context, start, end time.Time) (distributiondomain.ProjectWeights, error) {
	var (
		projectViews     map[int64]uint64
		totalViews       uint64
		projectDownloads map[int64]uint64
		totalDownloads   uint64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		projectViews, err = s.traffic.ProjectViews(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		totalViews, err = s.traffic.TotalViews(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		projectDownloads, err = s.traffic.ProjectDownloads(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		totalDownloads, err = s.traffic.TotalDownloads(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return distributiondomain.ProjectWeights{}, err
	}

	byProject := make(map[int64]uint64, len(projectViews)+len(projectDownloads))
	for projectID, views := range projectViews {
		byProject[projectID] += views
	}
	for projectID, downloads := range projectDownloads {
		byProject[projectID] += downloads
	}

	return distributiondomain.ProjectWeights{
		Total:     totalViews + totalDownloads,
		ByProject: byProject,
	}, nil
}

type teamRow struct {
	ProjectID int64
	UserID    int64
	Split     decimal.Decimal
}

// loadTeams fetches the accepted team members with their payout splits for
// every monetized project that earned weight.
func (s *Service) loadTeams(ctx context.Context, weights distributiondomain.ProjectWeights) (map[int64][]distributiondomain.TeamMember, error) {
	projectIDs := make([]int64, 0, len(weights.ByProject))
	for projectID := range weights.ByProject {
		projectIDs = append(projectIDs, projectID)
	}

	var rows []teamRow
	err := s.db.WithContext(ctx).
		Raw(`
			SELECT p.id AS project_id, tm.user_id, tm.payouts_split AS split
			FROM projects p
			INNER JOIN team_members tm ON p.team_id = tm.team_id AND tm.accepted = ?
			WHERE p.id IN ? AND p.monetization_status = ?
		`, true, projectIDs, distributiondomain.MonetizationStatusMonetized).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	teams := make(map[int64][]distributiondomain.TeamMember, len(rows))
	for _, row := range rows {
		teams[row.ProjectID] = append(teams[row.ProjectID], distributiondomain.TeamMember{
			UserID: row.UserID,
			Split:  row.Split,
		})
	}
	return teams, nil
}

// computePayouts derives per-user amounts. Projects without a monetized team
// forfeit their share; members with a non-positive split earn nothing and do
// not dilute the splits of the rest, so a project never pays out more than
// its weighted share.
func computePayouts(dayAmount decimal.Decimal, weights distributiondomain.ProjectWeights, teams map[int64][]distributiondomain.TeamMember) []pendingPayout {
	projectIDs := make([]int64, 0, len(weights.ByProject))
	for projectID := range weights.ByProject {
		projectIDs = append(projectIDs, projectID)
	}
	sort.Slice(projectIDs, func(i, j int) bool { return projectIDs[i] < projectIDs[j] })

	total := decimal.NewFromInt(int64(weights.Total))

	var pending []pendingPayout
	for _, projectID := range projectIDs {
		members := teams[projectID]
		if len(members) == 0 {
			continue
		}

		splitSum := decimal.Zero
		for _, member := range members {
			if member.Split.IsPositive() {
				splitSum = splitSum.Add(member.Split)
			}
		}
		if !splitSum.IsPositive() {
			continue
		}

		projectAmount := dayAmount.
			Mul(decimal.NewFromInt(int64(weights.ByProject[projectID]))).
			Div(total)

		for _, member := range members {
			if !member.Split.IsPositive() {
				continue
			}
			amount := projectAmount.Mul(member.Split).Div(splitSum)
			if amount.IsPositive() {
				pending = append(pending, pendingPayout{
					UserID:    member.UserID,
					ProjectID: projectID,
					Amount:    amount,
				})
			}
		}
	}
	return pending
}

// persist applies balance credits and ledger inserts in one transaction. A
// duplicate run that slipped past the existence check surfaces as a zero-row
// insert on the unique (user_id, project_id, day) index; returning an error
// there rolls back the balance credits with it.
func (s *Service) persist(ctx context.Context, day time.Time, pending []pendingPayout) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range pending {
			err := tx.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`,
				entry.Amount, entry.UserID).Error
			if err != nil {
				return err
			}
		}
		for _, entry := range pending {
			res := tx.Exec(`
				INSERT INTO payout_records (id, user_id, project_id, amount, day, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (user_id, project_id, day) DO NOTHING
			`, s.genID.Generate(), entry.UserID, entry.ProjectID, entry.Amount, day, now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("payout for user %d project %d on %s already recorded",
					entry.UserID, entry.ProjectID, day.Format("2006-01-02"))
			}
		}
		return nil
	})
}

// lockUsers takes every affected user's payout lock in ascending order and
// returns the matching release function.
func (s *Service) lockUsers(userIDs []int64) func() {
	for _, userID := range userIDs {
		s.locks.LockFor(userID).Lock()
	}
	return func() {
		for _, userID := range userIDs {
			s.locks.LockFor(userID).Unlock()
		}
	}
}

func affectedUsers(pending []pendingPayout) []int64 {
	seen := make(map[int64]struct{}, len(pending))
	userIDs := make([]int64, 0, len(pending))
	for _, entry := range pending {
		if _, ok := seen[entry.UserID]; ok {
			continue
		}
		seen[entry.UserID] = struct{}{}
		userIDs = append(userIDs, entry.UserID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	return userIDs
}

// dailyPayoutAmount splits the monthly budget over a 28 day model where the 8
// weekend days pay 1.25x a weekday.
func dailyPayoutAmount(budget decimal.Decimal, day time.Time) decimal.Decimal {
	weekdays := decimal.NewFromInt(20)
	weekendDays := decimal.NewFromInt(8)
	weekendMultiplier := decimal.New(125, -2)

	weekdayAmount := budget.Div(weekdays.Add(weekendMultiplier.Mul(weekendDays)))

	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return weekdayAmount.Mul(weekendMultiplier)
	default:
		return weekdayAmount
	}
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(distributiondomain.ErrStoreFailure, err))
}
