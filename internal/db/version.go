package db

import (
	"path"
	"strconv"
	"strings"

	"github.com/persistorai/fluxtrace/internal/db/migrations"
)

// SchemaVersion returns the highest version among the embedded goose
// migrations, parsed from the numeric file name prefix. The readiness
// endpoint compares it with the version applied to the database.
func SchemaVersion() int {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return 0
	}

	latest := 0
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}

		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}

		if v, err := strconv.Atoi(prefix); err == nil && v > latest {
			latest = v
		}
	}

	return latest
}
