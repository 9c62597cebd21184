// The assetfile command inspects serialized files and bundles.
package main

import (
	"os"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
)

func realMain() error {
	// Logs go to stderr so that stdout carries only what was requested.
	logrus.SetOutput(os.Stderr)

	if os.Getenv("ASSETFILE_PROFILE") != "" {
		defer profile.Start().Stop()
	}
	return Execute()
}

func main() {
	// Deferred calls in realMain run before the exit.
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
