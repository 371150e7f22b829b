package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/propchain/upkeep/services"
	"github.com/propchain/upkeep/utils"
)

// writeServiceError renders a service error as the standard envelope.
// Only domain error messages reach the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.StatusCode(err)
	message := services.GetErrorMessage(err)
	if message == "" {
		message = "An unexpected error occurred"
	}
	_ = utils.WriteError(w, r, status, message, services.GetErrorDetails(err))
}

// withStoreTimeout bounds a store call; zero leaves the request deadline in charge
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
