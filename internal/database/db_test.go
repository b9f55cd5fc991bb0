package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intervia/intervia/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenDefaultsToSQLiteMemory(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{"users", "otps", "password_reset_tokens"} {
		require.True(t, db.Migrator().HasTable(table), table)
	}

	require.True(t, db.Migrator().HasIndex(&models.User{}, "Email"))
	require.True(t, db.Migrator().HasIndex(&models.Otp{}, "Email"))
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}
