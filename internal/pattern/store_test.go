package pattern

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a test database connection with the learned_patterns
// schema. This requires a PostgreSQL instance with the pgvector extension.
func setupTestDB(t *testing.T) *sql.DB {
	// Integration setup would use a test PostgreSQL instance (e.g. via
	// testcontainers) and run migrations/001_init.sql against it.
	t.Skip("Integration test - requires PostgreSQL with pgvector")
	return nil
}

func TestPostgresTeachAndFind(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgresStore(db)
	ctx := context.Background()
	userID := uuid.New()

	taught, err := store.Teach(ctx, Teaching{
		UserID:          userID,
		Term:            "dhamaka",
		Type:            TypeIntent,
		AssociatedValue: "gym_workout",
		Context:         "dhamaka practice, count it as a workout",
		Step:            0.15,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, taught.ID)
	assert.Equal(t, InitialConfidence, taught.Confidence)

	found, err := store.FindByTerm(ctx, userID, "dhamaka")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, taught.ID, found[0].ID)
	assert.Equal(t, "gym_workout", found[0].AssociatedValue)
}

func TestPostgresTeachConflictReinforces(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgresStore(db)
	ctx := context.Background()
	userID := uuid.New()

	teaching := Teaching{
		UserID:          userID,
		Term:            "dhamaka",
		Type:            TypeIntent,
		AssociatedValue: "gym_workout",
		Step:            0.15,
	}

	first, err := store.Teach(ctx, teaching)
	require.NoError(t, err)

	second, err := store.Teach(ctx, teaching)
	require.NoError(t, err)

	// The unique constraint routes the repeat through the upsert path
	assert.Equal(t, first.ID, second.ID)
	assert.Greater(t, second.Confidence, first.Confidence)
	assert.Equal(t, first.UsageCount+1, second.UsageCount)
}

func TestPostgresReinforceAndDecay(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgresStore(db)
	ctx := context.Background()
	userID := uuid.New()

	taught, err := store.Teach(ctx, Teaching{
		UserID: userID, Term: "dhamaka", Type: TypeIntent,
		AssociatedValue: "gym_workout", Step: 0.15,
	})
	require.NoError(t, err)

	require.NoError(t, store.Reinforce(ctx, taught.ID, 0.15))
	reinforced, err := store.FindByTerm(ctx, userID, "dhamaka")
	require.NoError(t, err)
	require.Len(t, reinforced, 1)
	assert.Greater(t, reinforced[0].Confidence, taught.Confidence)
	assert.Equal(t, 1, reinforced[0].SuccessCount)

	for i := 0; i < 50; i++ {
		require.NoError(t, store.Decay(ctx, taught.ID, 0.15, 0.05))
	}
	decayed, err := store.FindByTerm(ctx, userID, "dhamaka")
	require.NoError(t, err)
	require.Len(t, decayed, 1)
	// Decay bottoms out at the floor instead of reaching zero
	assert.Equal(t, 0.05, decayed[0].Confidence)
}

func TestPostgresFindNearest(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgresStore(db)
	ctx := context.Background()
	userID := uuid.New()

	embedding := make([]float32, 768)
	embedding[0] = 1

	taught, err := store.Teach(ctx, Teaching{
		UserID: userID, Term: "dhamaka", Type: TypeIntent,
		AssociatedValue: "gym_workout", Step: 0.15,
		TermEmbedding: embedding,
	})
	require.NoError(t, err)

	near, err := store.FindNearest(ctx, userID, embedding, 0.25)
	require.NoError(t, err)
	require.NotNil(t, near)
	assert.Equal(t, taught.ID, near.ID)

	far := make([]float32, 768)
	far[384] = 1
	miss, err := store.FindNearest(ctx, userID, far, 0.25)
	require.NoError(t, err)
	assert.Nil(t, miss)
}
