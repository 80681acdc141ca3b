package bootstrap

import (
	"context"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:               "development",
		DevBootstrapAdmin: true,
		DevAdminEmail:     " Root@AIverse.local ",
		DevAdminPassword:  "Adm1n$ecret",
	}
}

func TestEnsureDevAdmin_CreatesProfileOne(t *testing.T) {
	db := testutil.SQLiteDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureDevAdmin(ctx, devConfig(), db))

	var admin models.Profile
	require.NoError(t, db.First(&admin, 1).Error)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, "root@aiverse.local", admin.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("Adm1n$ecret")))

	// Idempotent.
	require.NoError(t, EnsureDevAdmin(ctx, devConfig(), db))
	var n int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestEnsureDevAdmin_PromotesExistingProfile(t *testing.T) {
	db := testutil.SQLiteDB(t)
	existing := testutil.CreateProfile(t, db, "first_user", false)
	require.Equal(t, uint(1), existing.ID)

	require.NoError(t, EnsureDevAdmin(context.Background(), devConfig(), db))

	var p models.Profile
	require.NoError(t, db.First(&p, 1).Error)
	assert.True(t, p.IsAdmin)
	assert.Equal(t, "first_user", p.Username, "credentials are left alone")
}

func TestEnsureDevAdmin_Skipped(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*config.Config)
	}{
		{"production", func(c *config.Config) { c.Env = "production" }},
		{"flag off", func(c *config.Config) { c.DevBootstrapAdmin = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SQLiteDB(t)
			cfg := devConfig()
			tt.cfg(cfg)
			require.NoError(t, EnsureDevAdmin(context.Background(), cfg, db))

			var n int64
			require.NoError(t, db.Model(&models.Profile{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestEnsureDevAdmin_RequiresPassword(t *testing.T) {
	cfg := devConfig()
	cfg.DevAdminPassword = ""
	err := EnsureDevAdmin(context.Background(), cfg, testutil.SQLiteDB(t))
	assert.ErrorContains(t, err, "DEV_ADMIN_PASSWORD")
}
