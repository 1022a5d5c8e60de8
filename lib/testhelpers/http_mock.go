// Package testhelpers provides reusable test utilities and helpers for testing cipherswarm-dispatch.
package testhelpers

import (
	"net/http"

	"github.com/jarcoal/httpmock"
)

// SetupHTTPMock initializes httpmock on the default transport, activates it, and returns a cleanup function.
func SetupHTTPMock() func() {
	httpmock.Activate()

	return func() {
		httpmock.DeactivateAndReset()
	}
}

// SetupHTTPMockForClient initializes httpmock for a custom http.Client and returns a cleanup function.
func SetupHTTPMockForClient(client *http.Client) func() {
	httpmock.ActivateNonDefault(client)

	return func() {
		httpmock.DeactivateAndReset()
	}
}

// MockStatusPushSuccess registers a collector at url that accepts every snapshot with 204 No Content.
func MockStatusPushSuccess(url string) {
	httpmock.RegisterResponder(http.MethodPost, url, httpmock.NewStringResponder(http.StatusNoContent, ""))
}

// MockStatusPushFailure registers a collector at url that rejects every snapshot.
func MockStatusPushFailure(url string, statusCode int, body string) {
	httpmock.RegisterResponder(http.MethodPost, url, httpmock.NewStringResponder(statusCode, body))
}
