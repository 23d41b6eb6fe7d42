// Package mysql implements the MySQL persistence strategies and event
// store.
package mysql

import (
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/streamvault/streamvault"
)

// ErrEmptyStreamName is returned by GenerateTableName for an empty stream
// name.
var ErrEmptyStreamName = fmt.Errorf("streamvault/mysql: stream name cannot be empty")

// generateTableName returns the deterministic physical table name for
// streamName: "_" + sha1(streamName), hex-encoded.
func generateTableName(streamName streamvault.StreamName) (string, error) {
	if len(streamName) == 0 {
		return "", ErrEmptyStreamName
	}

	sum := sha1.Sum([]byte(streamName)) //nolint:gosec
	return "_" + hex.EncodeToString(sum[:]), nil
}

// quoteIdentifier backtick-quotes a MySQL identifier, escaping embedded
// backticks.
func quoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
