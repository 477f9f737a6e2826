// Package version pins the client identity sent to esub nodes.
package version

// Version is the esub-go release string.
const Version = "0.3.0"

// UserAgent returns the User-Agent header value for all requests.
func UserAgent() string {
	return "esub-go " + Version
}
