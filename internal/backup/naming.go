// Package backup names, selects and decodes table backup artifacts.
//
// Artifacts are Avro object container files named
// {table}_backup_{YYYYMMDD_HHMMSS}.avro. The timestamp is fixed width and UTC,
// so the lexicographically greatest name is also the newest artifact.
package backup

import (
	"fmt"
	"path"
	"strings"
	"time"

	"hiring-gateway/internal/storage"
)

const (
	ArtifactExt         = "avro"
	ArtifactContentType = "application/avro"
	timestampLayout     = "20060102_150405"
)

// ArtifactName returns the file name for a backup of table taken at t
func ArtifactName(table string, t time.Time) string {
	return fmt.Sprintf("%s_backup_%s.%s", table, t.UTC().Format(timestampLayout), ArtifactExt)
}

// ArtifactPrefix is the listing prefix that covers every backup of table under dir
func ArtifactPrefix(dir, table string) string {
	return storage.Join(dir, table+"_backup_")
}

// ParseArtifactName reports whether base is a backup name for table and returns its timestamp
func ParseArtifactName(table, base string) (time.Time, bool) {
	prefix := table + "_backup_"
	suffix := "." + ArtifactExt
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) {
		return time.Time{}, false
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(base, prefix), suffix)
	if len(stamp) != len(timestampLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Latest picks the newest backup of table directly under dir.
// Objects that do not follow the naming scheme are ignored.
func Latest(dir, table string, objects []storage.ObjectInfo) (storage.ObjectInfo, time.Time, bool) {
	dir = strings.Trim(dir, "/")

	var (
		best   storage.ObjectInfo
		bestAt time.Time
		found  bool
	)
	for _, obj := range objects {
		if strings.Trim(path.Dir(obj.Name), "/.") != dir {
			continue
		}
		at, ok := ParseArtifactName(table, path.Base(obj.Name))
		if !ok {
			continue
		}
		if !found || obj.Name > best.Name {
			best, bestAt, found = obj, at, true
		}
	}
	return best, bestAt, found
}
