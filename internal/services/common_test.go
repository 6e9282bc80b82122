package services

import (
	"os"
	"sync"
	"testing"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
)

var (
	testInitOnce  sync.Once
	testInitError error
)

// setupTestEnvironment initializes configuration once for all tests. MongoDB
// is only connected when MONGODB_URI is set; tests needing it skip otherwise.
func setupTestEnvironment() {
	testInitOnce.Do(func() {
		_ = logging.InitLogger()

		if err := config.LoadConfig(); err != nil {
			testInitError = err
			return
		}

		if os.Getenv("MONGODB_URI") != "" && config.MongoDB == nil {
			config.InitMongoDB()
		}
	})
}

// TestMain is the entry point for all tests in the services package
func TestMain(m *testing.M) {
	setupTestEnvironment()

	if testInitError != nil {
		panic(testInitError)
	}

	os.Exit(m.Run())
}
