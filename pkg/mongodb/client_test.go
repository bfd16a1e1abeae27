package mongodb

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
)

func TestNormalizeMapsDriverErrors(t *testing.T) {
	require.NoError(t, Normalize(nil))
	require.ErrorIs(t, Normalize(mongo.ErrNoDocuments), db.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	require.ErrorIs(t, Normalize(dup), db.ErrDuplicate)

	other := errors.New("socket closed")
	require.Equal(t, other, Normalize(other))
}

func TestIDHelpers(t *testing.T) {
	id := uuid.New()
	require.Equal(t, id, ParseID(id.String()))
	require.Equal(t, uuid.Nil, ParseID("not-a-uuid"))

	encoded := OptionalID(&id)
	require.NotNil(t, encoded)
	require.Equal(t, id, *ParseOptionalID(encoded))
	require.Nil(t, OptionalID(nil))
	bad := "garbage"
	require.Nil(t, ParseOptionalID(&bad))

	require.Equal(t, []string{id.String()}, IDStrings([]uuid.UUID{id}))
}
