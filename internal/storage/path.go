package storage

import (
	"fmt"
	"path"
	"regexp"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotPath returns the object key of a parquet snapshot of
// tableName, e.g. snapshots/core_teslastockdata/latest.parquet.
func BuildSnapshotPath(tableName, label string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(label, "snapshot label"); err != nil {
		return "", err
	}
	return path.Join("snapshots", tableName, label+".parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
