// Package regtank holds the RegTank screening API client. The service only
// needs authenticated outbound calls, so the package is a token source plus
// the login transport; callback parsing lives with the inbound guard.
package regtank
