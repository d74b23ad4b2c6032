package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// DefaultEnvFiles are read, when present, before flags are parsed.
var DefaultEnvFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped. It
// returns the files that were loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, errors.WrapError(err, errors.CategoryConfig, "failed to load env file").
				WithContext("path", f).
				Build()
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
