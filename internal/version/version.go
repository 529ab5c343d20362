// Package version tracks the bot release version.
package version

import "fmt"

// Version is the service current released version.
var Version = "0.2.0"

// DevVersion is the service current development version.
var DevVersion = "0.2.0"

func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return DevVersion
	}
	return Version
}

func GetVersionWithMode(mode string) string {
	return fmt.Sprintf("%s-%s", GetCurrentVersion(mode), mode)
}
