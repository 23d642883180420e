package instance

import "github.com/vrumi/vrumi-backend/pkg/env"

// ID identifies the running process in logs. Heroku dynos export DYNO,
// workers may set WORKER_ID; anything else falls back to the host name.
func ID(fallback string) string {
	return env.First(fallback, "DYNO", "WORKER_ID", "HOSTNAME")
}
