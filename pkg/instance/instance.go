// Package instance names the running process for logs and lock ownership.
package instance

import "github.com/angelmondragon/vendorpay-backend/pkg/env"

const fallbackID = "local"

// idEnvVars are checked in order; the first non-empty value wins.
var idEnvVars = []string{"VENDORPAY_INSTANCE_ID", "WORKER_ID", "DYNO", "HOSTNAME"}

// GetID returns the process instance identifier or "local".
func GetID() string {
	return env.First(fallbackID, idEnvVars...)
}
