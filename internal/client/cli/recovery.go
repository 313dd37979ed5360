package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/partfinder/partfinder/internal/client/session"
	"github.com/partfinder/partfinder/internal/common"
)

const maxCodeAttempts = 3

// ErrPasswordMismatch is returned when the two new-password entries differ.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Forgot walks through password recovery: send a code to the email, verify
// the code the user types in (up to three tries) and set a new password.
func (a *App) Forgot(ctx context.Context) error {
	email, err := getRequiredText(a.reader, "Enter account email", a.out)
	if err != nil {
		return err
	}

	msg, err := a.session.SendResetCode(ctx, email)
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(a.out, msg)
	}

	code, err := a.verifyCode(ctx, email)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return ErrPasswordMismatch
	}

	msg, err = a.session.ResetPassword(ctx, email, code, string(password))
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Password updated. You can log in with the new password."
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) verifyCode(ctx context.Context, email string) (string, error) {
	var err error
	for i := 0; i < maxCodeAttempts; i++ {
		var code string
		code, err = getRequiredText(a.reader, "Enter the 6-digit code", a.out)
		if err != nil {
			return "", err
		}
		err = a.session.VerifyResetCode(ctx, email, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, session.ErrInvalidResetCode) {
			return "", err
		}
		fmt.Fprintln(a.out, err)
	}
	return "", err
}
