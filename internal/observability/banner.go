package observability

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorNeonCyan = "\033[96m"
)

const banner = `
    __  __                   __      __
   / / / /__  _________  ___/ /___  / /___  _______
  / /_/ / _ \/ ___/ __ \/ __  / __ \/ __/ / / / ___/
 / __  /  __/ /  / /_/ / /_/ / /_/ / /_/ /_/ (__  )
/_/ /_/\___/_/   \____/\__,_/\____/\__/\__,_/____/

          >> MULTI-AGENT PIPELINE ENGINE <<
`

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// PrintBanner prints the centered banner. It is a no-op when stdout is
// redirected.
func PrintBanner() {
	if !IsTerminal() {
		return
	}

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan, l, colorReset)
	}
}
