// Package session stores the signed-in user in a browser cookie.
//
// The cookie holds a base64url encoded JSON Record. It is the only session
// state; the OAuth token itself lives in the credential file.
package session
