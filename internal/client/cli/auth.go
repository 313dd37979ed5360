package cli

import (
	"context"
	"fmt"

	"github.com/partfinder/partfinder/internal/common"
)

// getRequiredText and getPassword are indirections used to facilitate testing.
var (
	getRequiredText = GetRequiredText
	getPassword     = GetPassword
)

// Signup prompts for a username, email and password and creates an account.
// The new session is installed on success.
func (a *App) Signup(ctx context.Context) error {
	username, err := getRequiredText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getRequiredText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Signup(ctx, username, email, string(password)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account created, you are logged in.")
	return nil
}

// Login prompts for credentials and authenticates. A failed login leaves any
// current session in place.
func (a *App) Login(ctx context.Context) error {
	email, err := getRequiredText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Login(ctx, email, string(password)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
