// Package responses provides standardized response formatting. Failures use
// RFC 7807 Problem Details.
package responses
