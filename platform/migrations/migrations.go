package migrations

import (
	"fmt"
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
)

/*
 * Schema changes after the initial release are added here as numbered
 * migrations. A clean database skips them and is created directly from the
 * current models by InitSchema.
 */
func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID:      "1_initial_schema",
			Migrate: func(txn *gorm.DB) error { return txn.AutoMigrate(schema.AllModels()...) },
		},
		{
			ID:       "2_email_log_event_index",
			Migrate:  addEmailLogEventIndex,
			Rollback: dropEmailLogEventIndex,
		},
		{
			ID:      "3_drop_decision_chair_fk",
			Migrate: dropDecisionChairConstraint,
		},
	}
}

const emailLogEventIndex = "idx_email_logs_event_created"

func addEmailLogEventIndex(txn *gorm.DB) error {
	if txn.Migrator().HasIndex(&schema.EmailLog{}, emailLogEventIndex) {
		return nil
	}
	return txn.Exec(fmt.Sprintf("CREATE INDEX %v ON email_logs (event_type, created_at)", emailLogEventIndex)).Error
}

func dropEmailLogEventIndex(txn *gorm.DB) error {
	return txn.Migrator().DropIndex(&schema.EmailLog{}, emailLogEventIndex)
}

// Decisions used to reference the identity service's users table directly.
const decisionChairConstraint = "fk_decisions_chair"

func dropDecisionChairConstraint(txn *gorm.DB) error {
	if !txn.Migrator().HasConstraint(&schema.Decision{}, decisionChairConstraint) {
		return nil
	}
	return txn.Migrator().DropConstraint(&schema.Decision{}, decisionChairConstraint)
}

func newMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migration := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	migration.InitSchema(func(txn *gorm.DB) error {
		slog.Info("clean database detected, running full schema initialization")

		if err := txn.AutoMigrate(schema.AllModels()...); err != nil {
			return err
		}
		return addEmailLogEventIndex(txn)
	})

	return migration
}

// Migrate brings the database schema up to date.
func Migrate(db *gorm.DB) error {
	if err := newMigrator(db).Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB) error {
	if err := newMigrator(db).RollbackLast(); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
