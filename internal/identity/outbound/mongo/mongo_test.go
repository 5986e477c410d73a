package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestToDocument(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b, err := entity.NewBinding("chan-77", &entity.LinkCode{Digest: "dc", IssuedAt: now}, &entity.OTP{Digest: "do", ExpiresAt: now.Add(5 * time.Minute)})
	require.NoError(t, err)

	acc := entity.Account{ID: 7, Email: "ada@example.com", PasswordHash: "h", Revision: 3, CreatedAt: now, UpdatedAt: now, Binding: b}

	// Act
	got, err := toDocument(acc).toEntity()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, acc, *got)
}

func TestToDocument_Unlinked(t *testing.T) {
	t.Parallel()

	doc := toDocument(entity.Account{ID: 1, Email: "a@b.c"})

	assert.Empty(t, doc.ChannelID)
	assert.Nil(t, doc.LinkCode)
	assert.Nil(t, doc.OTP)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := mongodb.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	s := NewDB(client.Database("gostepup"), instrument.NewNoop())
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestDB_Account(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	acc := entity.Account{ID: 1001, Email: "ada@example.com", PasswordHash: "h", Revision: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccount(ctx, acc))

	dup := acc
	dup.ID = 1002
	assert.ErrorIs(t, s.CreateAccount(ctx, dup), goerror.ErrConflict)

	_, err := s.GetAccountByID(ctx, 9999)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	cur, err := s.GetAccountByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, cur.IssueLinkCode("digest-code", now))
	require.NoError(t, s.UpdateAccountBinding(ctx, *cur))

	// cur still carries revision 1.
	assert.ErrorIs(t, s.UpdateAccountBinding(ctx, *cur), goerror.ErrStale)

	byCode, err := s.GetAccountByLinkCode(ctx, "digest-code")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byCode.Revision)

	require.NoError(t, byCode.RedeemLinkCode("chan-77", now))
	require.NoError(t, s.UpdateAccountBinding(ctx, *byCode))

	got, err := s.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StageLinked, got.Binding.Stage())
	assert.Equal(t, int64(3), got.Revision)

	_, err = s.GetAccountByLinkCode(ctx, "digest-code")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	ghost := acc
	ghost.ID = 4242
	assert.ErrorIs(t, s.UpdateAccountBinding(ctx, ghost), goerror.ErrNotFound)
}
