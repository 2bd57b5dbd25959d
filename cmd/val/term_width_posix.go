//go:build !windows

package main

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// detectTerminalWidth returns the stdout column count, or 0 when stdout is
// not a terminal and COLUMNS is unset.
func detectTerminalWidth() int {
	if ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ); err == nil && ws != nil && ws.Col > 0 {
		return int(ws.Col)
	}
	return columnsEnv()
}

func columnsEnv() int {
	if cols, ok := os.LookupEnv("COLUMNS"); ok {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
