package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/partfinder/partfinder/internal/common"
)

// ErrNotLoggedIn is returned by commands that need a session.
var ErrNotLoggedIn = errors.New("not logged in")

// Status prints the session state, token expiries and the last error.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "State: %s\n", a.session.State())
	if s, ok := a.session.Session(); ok {
		fmt.Fprintf(a.out, "Access token expires:  %s\n", formatExpiry(s.AccessTokenExpiresAt))
		fmt.Fprintf(a.out, "Refresh token expires: %s\n", formatExpiry(s.RefreshTokenExpiresAt))
	}
	if err := a.session.LastError(); err != nil {
		fmt.Fprintf(a.out, "Last error: %v\n", err)
	}
	return nil
}

// WhoAmI calls the profile endpoint with the header the session manager
// issues, refreshing the access token first when needed.
func (a *App) WhoAmI(ctx context.Context) error {
	h := a.session.AuthHeader(ctx)
	if len(h) == 0 {
		return ErrNotLoggedIn
	}
	header := http.Header{}
	h.Apply(header)

	user, err := a.profiles.Me(ctx, header)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> (id %s)\n", user.Username, user.Email, user.ID)
	return nil
}

// Header prints the Authorization header the next authenticated call would use.
func (a *App) Header(ctx context.Context) error {
	h := a.session.AuthHeader(ctx)
	v, ok := h[common.AuthorizationHeader]
	if !ok {
		return ErrNotLoggedIn
	}
	fmt.Fprintf(a.out, "%s: %s\n", common.AuthorizationHeader, v)
	return nil
}

// Refresh forces a refresh of the access token.
func (a *App) Refresh(ctx context.Context) error {
	if _, err := a.session.RefreshAccessToken(ctx); err != nil {
		return err
	}
	s, ok := a.session.Session()
	if !ok {
		return ErrNotLoggedIn
	}
	fmt.Fprintf(a.out, "Access token refreshed, expires %s\n", formatExpiry(s.AccessTokenExpiresAt))
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format(time.DateTime)
}
