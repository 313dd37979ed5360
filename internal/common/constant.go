// Package common contains constants, sentinel errors and small helpers shared
// by the Part Finder client and the development auth backend.
package common

// AuthorizationHeader is the HTTP header that carries the bearer credential.
const AuthorizationHeader = "Authorization"

// BearerPrefix precedes the access token in AuthorizationHeader.
const BearerPrefix = "Bearer "

// ResetCodeDigits is the length of a password-reset verification code.
const ResetCodeDigits = 6
