package instance

import (
	"os"

	"github.com/angelmondragon/localbiz-backend/pkg/env"
)

// GetID returns the process instance identifier. LOCALBIZ_INSTANCE_ID wins,
// then the Heroku DYNO name, then the hostname.
func GetID() string {
	if id, ok := env.First("LOCALBIZ_INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
