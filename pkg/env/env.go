package env

import (
	"os"
	"strings"
)

// Prefix namespaces every process-level variable read outside the config struct.
const Prefix = "PRINTSHOP_"

// Get returns PRINTSHOP_<key>, then the bare key, then fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(Prefix + key)); val != "" {
		return val
	}
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
