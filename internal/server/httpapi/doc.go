// Package httpapi exposes the development auth backend over HTTP/JSON.
//
// Routes live under /api/v1/users. Failures are reported as
// {"detail": "..."} with the status codes the Part Finder client expects.
package httpapi
