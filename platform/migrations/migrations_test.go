package migrations

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
)

func openDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigrateCleanDatabase(t *testing.T) {
	db := openDb(t)

	require.NoError(t, Migrate(db))

	for _, model := range schema.AllModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&schema.EmailLog{}, emailLogEventIndex))

	// Running again is a no-op.
	require.NoError(t, Migrate(db))
}

func TestRollbackLast(t *testing.T) {
	db := openDb(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, RollbackLast(db))
	assert.False(t, db.Migrator().HasIndex(&schema.EmailLog{}, emailLogEventIndex))

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasIndex(&schema.EmailLog{}, emailLogEventIndex))
}

func TestDecisionDoesNotReferenceUsers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	assert.False(t, db.Migrator().HasConstraint(&schema.Decision{}, decisionChairConstraint))

	// The deciding chair is only known to the identity service.
	chair := uuid.New()
	decision := schema.Decision{
		Id:           uuid.New(),
		SubmissionId: uuid.New(),
		Status:       schema.DecisionAccept,
		DecidedBy:    &chair,
		DecidedAt:    time.Now(),
	}
	require.NoError(t, db.Create(&decision).Error)

	var stored schema.Decision
	require.NoError(t, db.First(&stored, "id = ?", decision.Id).Error)
	require.NotNil(t, stored.DecidedBy)
	assert.Equal(t, chair, *stored.DecidedBy)

	require.NoError(t, dropDecisionChairConstraint(db))
}
