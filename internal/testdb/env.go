package testdb

import "os"

// databaseURLEnvVars are checked in order by GetTestDatabaseURL.
var databaseURLEnvVars = []string{"DATABASE_URL", "FILEQUEUE_TEST_DB_URL", "FILEQUEUE_DATABASE_URL"}

// GetTestDatabaseURL returns the first non-empty database URL from the
// environment.
func GetTestDatabaseURL() string {
	for _, name := range databaseURLEnvVars {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// IsIntegrationTestEnvironment returns true if any of the database URL environment
// variables are set, indicating that integration tests can be run.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// ShouldSkipDatabaseTest returns true if the database connection environment variables
// are not set, indicating that database integration tests should be skipped.
func ShouldSkipDatabaseTest() bool {
	return !IsIntegrationTestEnvironment()
}
