package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("FILEQUEUE_TEST_DB_URL", "")
	t.Setenv("FILEQUEUE_DATABASE_URL", "")

	assert.Empty(t, GetTestDatabaseURL())
	assert.True(t, ShouldSkipDatabaseTest())

	t.Setenv("FILEQUEUE_DATABASE_URL", "postgres://fallback")
	assert.Equal(t, "postgres://fallback", GetTestDatabaseURL())

	t.Setenv("DATABASE_URL", "postgres://primary")
	assert.Equal(t, "postgres://primary", GetTestDatabaseURL())
	assert.True(t, IsIntegrationTestEnvironment())
}
