package api

import (
	"net/http"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ecom-server/app"
)

var (
	buildOnce sync.Once
	runtime   *app.Runtime
	buildErr  error
)

// Handler is the serverless entry point. The runtime is built once per
// instance and reused across invocations; migrations run on cold start
// only when the deployment opts in.
func Handler(w http.ResponseWriter, r *http.Request) {
	buildOnce.Do(func() {
		runtime, buildErr = app.Build(app.Options{
			LoadDotEnv:    false,
			RunMigrations: app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		})
	})

	if buildErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Something went wrong"}`))
		return
	}

	runtime.Handler.ServeHTTP(w, r)
}
