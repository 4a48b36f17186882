// Package google_tools provides MCP tools for signing in with Google when
// the assistant is the only interface, for example over the stdio transport.
//
// google_get_auth_url returns a consent URL. After granting access the user
// passes the authorization code, or the whole callback URL from the browser
// address bar, to google_save_auth_code, which writes the credential file.
package google_tools
