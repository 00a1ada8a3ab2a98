package config

import "fmt"

// ModuleName is the name of this binary as shown in help output.
const ModuleName = "wallet-provider"

// Set at build time via -ldflags "-X github/chapool/wallet-provider/internal/config.Commit=...".
var (
	Commit    = "< 40 chars git commit hash via ldflags >"
	BuildDate = "1970-01-01-00:00:00"
)

// GetFormattedBuildArgs returns the version line printed by --version.
func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleName, Commit, BuildDate)
}
