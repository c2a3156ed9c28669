// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// HelperEnv switches a test binary into helper-child mode.
const HelperEnv = "STDIOBRIDGE_TEST_HELPER"

// RunHelperProcess turns the current test binary into a scripted child when
// HelperEnv is set. Call it first thing in TestMain.
//
// Modes:
//
//	cat                 copy stdin to stdout until EOF
//	cat-stderr          copy stdin to stderr until EOF
//	emit OUT ERR        write OUT to stdout and ERR to stderr, exit 0
//	exit N              exit with code N
//	sleep               announce "ready" on stdout, then sleep
//	ignore-term         like sleep, but ignore SIGINT and SIGTERM
//	env NAME            print the value of NAME on stdout
func RunHelperProcess() {
	if os.Getenv(HelperEnv) != "1" {
		return
	}
	os.Exit(helperMain(os.Args[1:]))
}

func helperMain(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "helper: missing mode")
		return 2
	}

	switch mode, rest := args[0], args[1:]; mode {
	case "cat":
		if _, err := io.Copy(os.Stdout, os.Stdin); err != nil {
			return 3
		}
		return 0
	case "cat-stderr":
		if _, err := io.Copy(os.Stderr, os.Stdin); err != nil {
			return 3
		}
		return 0
	case "emit":
		if len(rest) > 0 {
			fmt.Fprint(os.Stdout, rest[0])
		}
		if len(rest) > 1 {
			fmt.Fprint(os.Stderr, rest[1])
		}
		return 0
	case "exit":
		code, err := strconv.Atoi(first(rest))
		if err != nil {
			return 2
		}
		return code
	case "sleep":
		fmt.Fprintln(os.Stdout, "ready")
		time.Sleep(time.Minute)
		return 0
	case "ignore-term":
		signal.Ignore(syscall.SIGINT, syscall.SIGTERM)
		fmt.Fprintln(os.Stdout, "ready")
		time.Sleep(time.Minute)
		return 0
	case "env":
		fmt.Fprint(os.Stdout, os.Getenv(first(rest)))
		return 0
	default:
		fmt.Fprintf(os.Stderr, "helper: unknown mode %q\n", mode)
		return 2
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// HelperCommand returns the executable, arguments and environment overlay
// that start the current test binary as a helper child.
func HelperCommand(mode string, args ...string) (string, []string, map[string]string) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return exe, append([]string{mode}, args...), map[string]string{HelperEnv: "1"}
}
