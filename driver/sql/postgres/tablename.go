// Package postgres implements the PostgreSQL persistence strategies and
// event store.
package postgres

import (
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/streamvault/streamvault"
)

// ErrEmptyStreamName is returned by GenerateTableName for an empty stream
// name.
var ErrEmptyStreamName = fmt.Errorf("streamvault/postgres: stream name cannot be empty")

// generateTableName returns the deterministic physical table name for
// streamName: "_" + sha1(streamName), hex-encoded. Every caller (both
// strategies) shares this so two strategies never disagree about which
// physical table a stream lives in.
func generateTableName(streamName streamvault.StreamName) (string, error) {
	if len(streamName) == 0 {
		return "", ErrEmptyStreamName
	}

	sum := sha1.Sum([]byte(streamName)) //nolint:gosec
	return "_" + hex.EncodeToString(sum[:]), nil
}

// quoteIdentifier double-quotes a Postgres identifier, escaping embedded
// quotes. Table names are always "_"+hex(sha1(...)), so this is never
// exposed to caller-controlled text in practice; it is still applied
// uniformly so no code path interpolates an identifier unquoted.
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
