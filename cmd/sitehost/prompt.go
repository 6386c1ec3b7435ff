package main

import (
	"errors"
	"fmt"
	"net/mail"
	"unicode/utf8"

	"github.com/manifoldco/promptui"
	"github.com/sagarc03/sitehost/identity"
)

// errCancelled is returned when the operator aborts a prompt.
var errCancelled = errors.New("cancelled")

// accountPrompts asks for whichever account fields were not given as flags.
type accountPrompts struct {
	minPassword int
}

func (p accountPrompts) email(current string) (string, error) {
	if current != "" {
		return current, nil
	}
	prompt := promptui.Prompt{
		Label: "Email",
		Validate: func(input string) error {
			if _, err := mail.ParseAddress(input); err != nil {
				return errors.New("enter a valid email address")
			}
			return nil
		},
	}
	return runPrompt(prompt)
}

func (p accountPrompts) username(current string) (string, error) {
	if current != "" {
		return current, nil
	}
	prompt := promptui.Prompt{
		Label:   "Display name (optional)",
		Default: "",
	}
	return runPrompt(prompt)
}

// checkPassword mirrors the limits the identity provider enforces on sign up.
func checkPassword(input string, minLen int) error {
	if utf8.RuneCountInString(input) < minLen {
		return fmt.Errorf("password must be at least %d characters", minLen)
	}
	if len(input) > identity.MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", identity.MaxPasswordBytes)
	}
	return nil
}

func (p accountPrompts) password(current string) (string, error) {
	if current != "" {
		return current, nil
	}

	minLen := p.minPassword
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			return checkPassword(input, minLen)
		},
	}
	password, err := runPrompt(prompt)
	if err != nil {
		return "", err
	}

	confirm := promptui.Prompt{
		Label: "Confirm password",
		Mask:  '*',
		Validate: func(input string) error {
			if input != password {
				return errors.New("passwords do not match")
			}
			return nil
		},
	}
	if _, err := runPrompt(confirm); err != nil {
		return "", err
	}
	return password, nil
}

func runPrompt(prompt promptui.Prompt) (string, error) {
	value, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return "", errCancelled
	}
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	return value, nil
}
