// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/database"
)

// NewDB opens a private in-memory SQLite database with the chat schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:chat-%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.PrincipalModel{}, &domain.MessageModel{}))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// SeedPrincipal inserts a principal named after its id.
func SeedPrincipal(t testing.TB, db *gorm.DB, id string, role domain.Role) *domain.Principal {
	t.Helper()

	p := &domain.Principal{
		ID:          id,
		Email:       id + "@example.edu",
		DisplayName: "User " + id,
		Role:        role,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(domain.PrincipalToModel(p)).Error)
	return p
}
