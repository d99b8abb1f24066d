package firebase

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store/storetest"
)

func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST nie ustawione")
	}
	ctx := context.Background()
	fs, err := firestore.NewClient(ctx, "bookcrossing-test")
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	storetest.RunContract(t, NewStore(fs), storetest.Features{})
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))
	assert.ErrorIs(t, mapError("op", status.Error(codes.NotFound, "brak")), apperr.ErrNotFound)
	assert.ErrorIs(t, mapError("op", status.Error(codes.AlreadyExists, "jest")), apperr.ErrConflict)
	assert.ErrorIs(t, mapError("op", status.Error(codes.FailedPrecondition, "warunek")), apperr.ErrConflict)
	assert.ErrorIs(t, mapError("op", status.Error(codes.Aborted, "przerwana")), apperr.ErrConflict)

	typed := apperr.Validation("op", "zły tytuł")
	assert.Same(t, typed, mapError("inna", typed))

	unavailable := mapError("op", status.Error(codes.Unavailable, "offline"))
	assert.Equal(t, "", string(apperr.KindOf(unavailable)))
	assert.Equal(t, codes.Unavailable, status.Code(unavailable))
}

func TestNameKeyIsStable(t *testing.T) {
	assert.Equal(t, nameKey("Frank Herbert"), nameKey("Frank Herbert"))
	assert.NotEqual(t, nameKey("Frank Herbert"), nameKey("frank herbert"))
	assert.Len(t, nameKey("Фёдор/Достоевский"), 64)
}

func TestCountQueryPerStatus(t *testing.T) {
	// klient emulatora nie łączy się przy tworzeniu
	t.Setenv("FIRESTORE_EMULATOR_HOST", "localhost:8089")
	fs, err := firestore.NewClient(context.Background(), "bookcrossing-test")
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	s := NewStore(fs)
	for _, st := range []models.BookStatus{models.StatusInHand, models.StatusAvailable, models.StatusReserved} {
		assert.NotNil(t, s.countQuery(st))
	}
}

func TestAggregateInt(t *testing.T) {
	n, err := aggregateInt(firestore.AggregationResult{"n": &firestorepb.Value{
		ValueType: &firestorepb.Value_IntegerValue{IntegerValue: 7},
	}}, "n")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = aggregateInt(firestore.AggregationResult{"n": int64(3)}, "n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = aggregateInt(firestore.AggregationResult{}, "n")
	assert.Error(t, err)
}
