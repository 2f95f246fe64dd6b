package main

import (
	"context"
	"path/filepath"
	"testing"

	"muadati/internal/auth"
	"muadati/internal/database"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
users:
  - name: Samer
    email: Samer@Example.com
    phone: "0912345678"
    password: secret123
    role: owner
    city: Damascus
equipment:
  - owner_email: samer@example.com
    title: Generator
    category: power_generator
    description: 20kVA diesel
    price_per_day: 45
    price_per_hour: 6
    city: Damascus
    phone_number: "0912345678"
`

func TestParseFixtures(t *testing.T) {
	fx, err := parseFixtures([]byte(sample))
	require.NoError(t, err)
	require.Len(t, fx.Users, 1)
	require.Len(t, fx.Equipment, 1)
	require.NotNil(t, fx.Equipment[0].PricePerHour)
	assert.InDelta(t, 6, *fx.Equipment[0].PricePerHour, 0.001)

	_, err = parseFixtures([]byte("users:\n  - email: a@b.co\n    password: x\n    role: admin\n"))
	assert.Error(t, err)

	_, err = parseFixtures([]byte("equipment:\n  - owner_email: a@b.co\n    category: spaceship\n"))
	assert.Error(t, err)
}

func TestSeedIsIdempotentForUsers(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "seed.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fx, err := parseFixtures([]byte(sample))
	require.NoError(t, err)
	ctx := context.Background()

	n, err := seedUsers(ctx, db, fx.Users)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = seedUsers(ctx, db, fx.Users)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	user, err := db.GetUserByEmail(ctx, "samer@example.com")
	require.NoError(t, err)
	assert.NoError(t, auth.CheckPassword(user.PasswordHash, "secret123"))

	n, err = seedListings(ctx, db, fx.Equipment)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
