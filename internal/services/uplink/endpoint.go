package uplink

import "strings"

// DeriveRegisterEndpoint turns the configured data endpoint into the
// registration endpoint by replacing the last path segment with "register"
// (or appending it when the URL has no path). Query string and fragment are
// dropped first.
//
//	https://api.example.com/api/v1/data -> https://api.example.com/api/v1/register
//	https://api.example.com             -> https://api.example.com/register
func DeriveRegisterEndpoint(dataEndpoint string) string {
	ep := strings.TrimSpace(dataEndpoint)

	for strings.HasSuffix(ep, "/") {
		ep = ep[:len(ep)-1]
	}

	if cut := strings.IndexAny(ep, "?#"); cut != -1 {
		ep = ep[:cut]
	}

	lastSlash := strings.LastIndex(ep, "/")
	// lastSlash < 8 can only be part of the scheme separator ("https://").
	if lastSlash < 8 {
		return ep + "/register"
	}
	return ep[:lastSlash+1] + "register"
}
