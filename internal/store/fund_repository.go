package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cheerfulman/arbitrage-fund/internal/fund"
	"github.com/cheerfulman/arbitrage-fund/pkg/database"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

const snapshotColumns = `fund_code, fund_name, price, pre_close, price_date,
	increase_rate, volume, amount, amount_incr, fund_nav, estimate_value,
	discount_rate, premium_rate, index_code, index_name, index_increase_rate,
	apply_fee, apply_status, redeem_fee, redeem_status, turnover_rate,
	nav_date, ingest_date`

// FundRepository persists fund market snapshots.
type FundRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewFundRepository creates a fund repository.
func NewFundRepository(db *database.DB, log *logger.Logger) *FundRepository {
	return &FundRepository{db: db, logger: log}
}

var upsertSnapshotQuery = fmt.Sprintf(`
	INSERT INTO fund_snapshots (%s)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	ON CONFLICT ON CONSTRAINT fund_snapshots_natural_key DO UPDATE SET
		price = EXCLUDED.price,
		pre_close = EXCLUDED.pre_close,
		price_date = EXCLUDED.price_date,
		increase_rate = EXCLUDED.increase_rate,
		volume = EXCLUDED.volume,
		amount = EXCLUDED.amount,
		amount_incr = EXCLUDED.amount_incr,
		fund_nav = EXCLUDED.fund_nav,
		estimate_value = EXCLUDED.estimate_value,
		discount_rate = EXCLUDED.discount_rate,
		premium_rate = EXCLUDED.premium_rate,
		index_code = EXCLUDED.index_code,
		index_name = EXCLUDED.index_name,
		index_increase_rate = EXCLUDED.index_increase_rate,
		apply_fee = EXCLUDED.apply_fee,
		apply_status = EXCLUDED.apply_status,
		redeem_fee = EXCLUDED.redeem_fee,
		redeem_status = EXCLUDED.redeem_status,
		turnover_rate = EXCLUDED.turnover_rate,
		ingest_date = EXCLUDED.ingest_date,
		updated_at = now()`, snapshotColumns)

// UpsertBatch writes all snapshots in one transaction. Rows sharing the
// natural key (fund_code, fund_name, nav_date) with an existing row are
// updated in place. The whole batch rolls back on any row failure.
func (r *FundRepository) UpsertBatch(ctx context.Context, snapshots []fund.Snapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	var written int
	err := r.db.WithReconnect(ctx, func(ctx context.Context) error {
		written = 0

		tx, err := r.db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction failed: %w", err)
		}
		defer tx.Rollback(ctx)

		for _, s := range snapshots {
			if _, err := tx.Exec(ctx, upsertSnapshotQuery,
				s.FundCode, s.FundName, s.Price, s.PreClose, s.PriceDate,
				s.IncreaseRate, s.Volume, s.Amount, s.AmountIncr, s.FundNav,
				s.EstimateValue, s.DiscountRate, s.PremiumRate, s.IndexCode,
				s.IndexName, s.IndexIncreaseRate, s.ApplyFee, s.ApplyStatus,
				s.RedeemFee, s.RedeemStatus, s.TurnoverRate, s.NavDate,
				s.IngestDate,
			); err != nil {
				return fmt.Errorf("upsert snapshot %s failed: %w", s.FundCode, err)
			}
			written++
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}

	r.logger.WithField("count", written).Info("Fund snapshots saved")
	return written, nil
}

// GetByDate returns the snapshots ingested on a given date, keyed by fund
// code. A fund appearing more than once for a day resolves to the most
// recently updated row.
func (r *FundRepository) GetByDate(ctx context.Context, date time.Time) (map[string]fund.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fund_snapshots
		WHERE ingest_date = $1
		ORDER BY updated_at ASC`, snapshotColumns)

	result := make(map[string]fund.Snapshot)
	err := r.db.WithReconnect(ctx, func(ctx context.Context) error {
		rows, err := r.db.Pool.Query(ctx, query, date)
		if err != nil {
			return fmt.Errorf("query snapshots failed: %w", err)
		}
		defer rows.Close()

		clear(result)
		for rows.Next() {
			s, err := scanSnapshot(rows)
			if err != nil {
				return err
			}
			result[s.FundCode] = s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetByNavDate returns all snapshots carrying a given net-asset-value
// date, in fund code order.
func (r *FundRepository) GetByNavDate(ctx context.Context, navDate string) ([]fund.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fund_snapshots
		WHERE nav_date = $1
		ORDER BY fund_code ASC, fund_name ASC`, snapshotColumns)

	var result []fund.Snapshot
	err := r.db.WithReconnect(ctx, func(ctx context.Context) error {
		rows, err := r.db.Pool.Query(ctx, query, navDate)
		if err != nil {
			return fmt.Errorf("query snapshots failed: %w", err)
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			s, err := scanSnapshot(rows)
			if err != nil {
				return err
			}
			result = append(result, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func scanSnapshot(row pgx.Row) (fund.Snapshot, error) {
	var s fund.Snapshot
	err := row.Scan(
		&s.FundCode, &s.FundName, &s.Price, &s.PreClose, &s.PriceDate,
		&s.IncreaseRate, &s.Volume, &s.Amount, &s.AmountIncr, &s.FundNav,
		&s.EstimateValue, &s.DiscountRate, &s.PremiumRate, &s.IndexCode,
		&s.IndexName, &s.IndexIncreaseRate, &s.ApplyFee, &s.ApplyStatus,
		&s.RedeemFee, &s.RedeemStatus, &s.TurnoverRate, &s.NavDate,
		&s.IngestDate,
	)
	if err != nil {
		return fund.Snapshot{}, fmt.Errorf("scan snapshot failed: %w", err)
	}
	return s, nil
}
