package auth

import (
	"fmt"
	"io"
	"strings"
)

// PrintCookieGuide explains how to copy the session cookie out of a browser
func PrintCookieGuide(w io.Writer, baseURL, cookieName string) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FIRSTVIEW SESSION COOKIE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Full-size images are only served to logged-in members. To let the")
	fmt.Fprintln(w, "downloader act as your browser session:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  1. Open %s and log in.\n", baseURL)
	fmt.Fprintln(w, "  2. Open the developer tools (F12, or Cmd+Option+I on macOS).")
	fmt.Fprintln(w, "  3. Chrome/Edge: Application > Cookies. Firefox: Storage > Cookies.")
	fmt.Fprintf(w, "  4. Select the site and copy the value of the %q cookie.\n", cookieName)
	fmt.Fprintln(w, "  5. Paste it at the prompt below. Input is hidden.")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Alternatively set %s in the environment.\n", EnvSessionCookie)
	fmt.Fprintln(w, "The cookie expires when you log out of the site in that browser.")
	fmt.Fprintln(w, rule)
}
