// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for short-lived API calls. Streaming
// connections (the SSE feed) must not use it: the timeout would sever them.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
