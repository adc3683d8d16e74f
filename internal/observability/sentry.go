package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op when no DSN is configured, so local development
// works without a Sentry project.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}

	return nil
}

// FlushSentry drains buffered events. Called from the runtime close
// hook so serverless instances do not lose reports on teardown.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
