// Package authapi is the HTTP client for the Part Finder auth backend.
//
// # Endpoints
//
//	POST /api/v1/users/login                          {email, password}
//	POST /api/v1/users/register                       {email, username, password}
//	POST /api/v1/users/refresh                        {refresh_token}
//	POST /api/v1/users/forgot-password/send-code      {email}
//	POST /api/v1/users/forgot-password/verify-code    {email, code}
//	POST /api/v1/users/forgot-password/reset-password {email, code, new_password}
//	GET  /api/v1/users/me                             (bearer)
//
// The first three answer with a TokenResponse whose lifetimes are relative
// (seconds); turning them into absolute expiries is the caller's job.
//
// # Error Handling
//
// A non-2xx answer becomes *APIError carrying the backend's JSON "message" or
// "detail". Other bodies are not shown: the reset-code calls report the
// status text and every call falls back to a per-operation message.
// APIError matches ErrUnauthorized (401/403) and ErrNotFound (404) with
// errors.Is. Network failures become *TransportError, which matches
// ErrUnavailable and reads as a generic per-operation message. A 2xx answer
// that cannot be decoded, or a login/register answer without a refresh
// token, matches ErrMalformedResponse.
package authapi
