package store

import "strings"

// DSNWithSearchPath pins the schema as a connection parameter so every
// pooled connection gets it. A session-level SET covers only the one
// connection it ran on; the pool dials further connections lazily.
func DSNWithSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}
