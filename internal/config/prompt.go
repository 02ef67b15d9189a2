package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptPassword asks for the WiFi password on the terminal without echo.
// It does nothing when the password is already set or in is not a terminal.
func (c *Config) PromptPassword(in *os.File, out io.Writer) error {
	if c.WiFi.Password != "" || !term.IsTerminal(int(in.Fd())) {
		return nil
	}

	fmt.Fprintf(out, "WiFi password for %q (empty for an open network): ", c.WiFi.SSID)
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	c.WiFi.Password = strings.TrimRight(string(pw), "\r\n")
	return nil
}
