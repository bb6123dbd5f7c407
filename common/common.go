package common

const (
	// Location of APIs
	TicketAPILoc   = "/tickets"
	ValidateAPILoc = "/validate"
	ProxyAPILoc    = "/proxies"
)

var (
	// APIVersion defines the API version
	APIVersion string

	// Default MIME type for all responses
	DefaultMIMEType = "application/json"
)

// SetVersion sets the API version reported in response headers
func SetVersion(version string) {
	APIVersion = version
	DefaultMIMEType = "application/json"
	if version != "" {
		DefaultMIMEType += ";version=" + version
	}
}
