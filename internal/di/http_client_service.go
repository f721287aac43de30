package di

import (
	"net/http"
	"time"

	"github.com/samber/do/v2"
)

// HTTPClientService is the single *http.Client shared by every namespace's
// Repository and by the Notifier, so connection pooling is process-wide
// rather than per-component.
type HTTPClientService struct {
	Client *http.Client
}

// NewHTTPClient builds the shared HTTP client. The client-level timeout is
// generous since every call site derives its own context.WithTimeout per
// attempt (long-poll rounds need far longer than a config fetch does).
func NewHTTPClient(_ do.Injector) (*HTTPClientService, error) {
	return &HTTPClientService{Client: &http.Client{Timeout: 2 * time.Minute}}, nil
}
