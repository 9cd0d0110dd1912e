package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"resume-intake/internal/shared/telemetry"
)

// envFileCandidates lists dotenv files in load order. ENV_FILE, when set, is tried first so its
// values win over the defaults; godotenv never overrides variables that are already set.
func envFileCandidates() []string {
	paths := []string{".env", "cmd/.env"}
	if explicit := strings.TrimSpace(os.Getenv("ENV_FILE")); explicit != "" {
		paths = append([]string{explicit}, paths...)
	}
	return paths
}

// loadEnvFiles loads the files that exist and returns the ones applied.
func loadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				telemetry.Warn("config.env_file_ignored", map[string]any{"path": p, "error": err})
			}
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}
