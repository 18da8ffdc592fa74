package gormstore

import (
	"context"
	"fmt"

	"github.com/datafluxo/financas_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// upgradeStep is one named, idempotent schema change. probe reports whether
// the post-condition already holds; apply runs inside its own transaction.
type upgradeStep struct {
	name  string
	probe func(ctx context.Context, db *gorm.DB) (bool, error)
	apply func(ctx context.Context, tx *gorm.DB) error
}

func upgradeSteps() []upgradeStep {
	return []upgradeStep{
		{
			name: "create-tables",
			probe: func(ctx context.Context, db *gorm.DB) (bool, error) {
				for _, model := range []interface{}{
					&models.Account{}, &models.Category{}, &models.Party{},
					&models.Posting{}, &models.ImportMark{},
				} {
					if !db.WithContext(ctx).Migrator().HasTable(model) {
						return false, nil
					}
				}
				return true, nil
			},
			apply: func(ctx context.Context, tx *gorm.DB) error {
				return tx.WithContext(ctx).AutoMigrate(
					&models.Account{}, &models.Category{}, &models.Party{},
					&models.Posting{}, &models.ImportMark{},
				)
			},
		},
		{
			name: "report-indexes",
			probe: func(ctx context.Context, db *gorm.DB) (bool, error) {
				m := db.WithContext(ctx).Migrator()
				for _, idx := range []string{
					"idx_postings_state_due",
					"idx_postings_account_settle",
					"idx_postings_category_settle",
				} {
					if !m.HasIndex(&models.Posting{}, idx) {
						return false, nil
					}
				}
				return true, nil
			},
			apply: func(ctx context.Context, tx *gorm.DB) error {
				// AutoMigrate picks the composite index tags up from the model
				return tx.WithContext(ctx).AutoMigrate(&models.Posting{})
			},
		},
		{
			name: "posting-state-casing",
			probe: func(ctx context.Context, db *gorm.DB) (bool, error) {
				if !stateCasingApplies(db.Dialector.Name()) {
					return true, nil
				}
				var count int64
				err := db.WithContext(ctx).Model(&models.Posting{}).
					Where("BINARY state <> LOWER(state)").
					Count(&count).Error
				if err != nil {
					return false, mapErr(err)
				}
				return count == 0, nil
			},
			apply: func(ctx context.Context, tx *gorm.DB) error {
				return tx.Model(&models.Posting{}).
					Where("BINARY state <> LOWER(state)").
					Update("state", gorm.Expr("LOWER(state)")).Error
			},
		},
		{
			name: "interest-null-backfill",
			probe: func(ctx context.Context, db *gorm.DB) (bool, error) {
				var count int64
				err := db.WithContext(ctx).Model(&models.Posting{}).
					Where("interest IS NULL").
					Count(&count).Error
				if err != nil {
					return false, mapErr(err)
				}
				return count == 0, nil
			},
			apply: func(ctx context.Context, tx *gorm.DB) error {
				return tx.Model(&models.Posting{}).
					Where("interest IS NULL").
					Update("interest", models.ZeroMoney()).Error
			},
		},
	}
}

// RunUpgrades walks the step sequence in order. Each step probes first and
// is skipped when its post-condition already holds; a failure aborts the
// sequence with the step name attached.
func (g *Gorm) RunUpgrades(ctx context.Context, log *logrus.Logger) error {
	for _, step := range upgradeSteps() {
		done, err := step.probe(ctx, g.db)
		if err != nil {
			return fmt.Errorf("upgrade %s: probe: %w", step.name, err)
		}
		if done {
			log.WithField("step", step.name).Debug("schema upgrade already applied")
			continue
		}
		err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return step.apply(ctx, tx)
		})
		if err != nil {
			return fmt.Errorf("upgrade %s: %w", step.name, mapErr(err))
		}
		log.WithField("step", step.name).Info("schema upgrade applied")
	}
	return nil
}

// PendingUpgrades probes every step without applying anything; start uses it
// to refuse to serve against a stale schema.
func (g *Gorm) PendingUpgrades(ctx context.Context) ([]string, error) {
	var pending []string
	for _, step := range upgradeSteps() {
		done, err := step.probe(ctx, g.db)
		if err != nil {
			return nil, fmt.Errorf("upgrade %s: probe: %w", step.name, err)
		}
		if !done {
			pending = append(pending, step.name)
		}
	}
	return pending, nil
}

// stateCasingApplies limits the BINARY-comparison backfill to MySQL; sqlite
// and postgres installations store canonical casing from day one.
func stateCasingApplies(dialect string) bool {
	return dialect == "mysql"
}
