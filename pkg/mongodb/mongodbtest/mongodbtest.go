// Package mongodbtest connects adapter tests to a disposable MongoDB database.
package mongodbtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/mongodb"
)

// EnvURI names the variable holding a replica-set URI for adapter tests.
const EnvURI = "LABINV_TEST_MONGO_URI"

// Connect returns a client bound to a fresh database, or skips the test when
// no test deployment is configured.
func Connect(t *testing.T) *mongodb.Client {
	t.Helper()
	uri := os.Getenv(EnvURI)
	if uri == "" {
		t.Skipf("%s is not set", EnvURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "labinv_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	client, err := mongodb.New(ctx, config.MongoConfig{URI: uri, Database: name, ConnectTimeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database().Drop(cleanupCtx)
		_ = client.Close(cleanupCtx)
	})
	return client
}
