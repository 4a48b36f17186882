// Package credentials owns the on-disk OAuth token file.
//
// The token file is the only source of truth for server-side Google calls.
// It is read tolerantly (several historical layouts are accepted, see
// Normalize) and always written in the "normal" layout:
//
//	{"normal": {"access_token": "...", "refresh_token": "...",
//	            "scope": "...", "token_type": "Bearer",
//	            "expiry_date": 1735689600000}}
//
// Writes go through a temporary file and a rename. Clear leaves a
// timestamped backup next to the original.
//
// TokenSource adapts a Store to oauth2.TokenSource and persists refreshed
// tokens back to the file.
package credentials
