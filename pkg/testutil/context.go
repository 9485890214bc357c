package testutil

import (
	"net/http"
	"time"

	"heirloom/pkg/requestcontext"
)

// WithNow pins the request-scoped clock.
func WithNow(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
