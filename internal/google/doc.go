// Package google wraps the Google OAuth2 pieces meetwise needs: the web
// sign-in flow, profile lookup, ID token decoding and access token validation.
//
// Token persistence lives in the credentials package; this package never
// touches the token file.
package google
