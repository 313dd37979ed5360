// Package cli provides the interactive Part Finder command-line client.
//
// It wires configuration, the durable store, the auth backend client and the
// session manager, then runs a REPL until the user exits. The REPL stands in
// for the mobile UI: it asks the session manager for an Authorization header
// before each authenticated call and reads its state for the prompt.
//
// Commands:
//   - signup / login / logout
//   - status: session state, token expiries and the last error
//   - whoami: an authenticated call to the backend profile endpoint
//   - header: the header the next authenticated call would carry
//   - refresh: force an access-token refresh
//   - forgot: send, verify and use a password-reset code
//
// Start with NewApp and App.Run; Run blocks until the user exits.
package cli
