package gateway

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/sync/singleflight"
)

// CapturedResponse is a fully buffered upstream response, small enough to
// hand to every caller that shared a deduplicated request.
type CapturedResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Deduplicator collapses identical in-flight requests: while one request
// with a given signature is running, callers with the same signature wait
// for its result instead of reaching the backing service again. It holds
// no state between flights and lives for the process lifetime.
type Deduplicator struct {
	group singleflight.Group
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Do runs fn once per concurrently submitted key. The shared flag reports
// whether this caller got another flight's result.
func (d *Deduplicator) Do(key string, fn func() (CapturedResponse, error)) (CapturedResponse, bool, error) {
	v, err, shared := d.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return CapturedResponse{}, shared, err
	}
	return v.(CapturedResponse), shared, nil
}

// RequestKey is the dedup signature: method, path, and a digest of the
// body, so two submissions of the same cart collapse into one order.
func RequestKey(method, path string, body []byte) string {
	sum := sha256.Sum256(body)
	return method + " " + path + " " + hex.EncodeToString(sum[:])
}
