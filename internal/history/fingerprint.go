package history

import (
	"fmt"
	"net/url"
	"time"

	"github.com/dmfenton/plotdesk/internal/model"
)

// Fingerprint mints the identifier for a new history entry: the request's
// variable id joined with the current wall-clock milliseconds, URL-escaped.
//
// This is deliberately not a content hash. History is a timeline of user
// actions, so replaying an identical configuration twice must produce two
// distinct entries; the timestamp component guarantees that. The same id is
// used as the in-flight token while the plot's thumbnail is being captured.
func Fingerprint(request model.TimeSeriesRequest) string {
	return FingerprintAt(request, time.Now())
}

// FingerprintAt is Fingerprint with an explicit clock, for tests.
func FingerprintAt(request model.TimeSeriesRequest, now time.Time) string {
	return url.QueryEscape(fmt.Sprintf("%s-%d", request.Variable.DataFieldID, now.UnixMilli()))
}
