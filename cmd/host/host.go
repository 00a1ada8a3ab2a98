package host

import (
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("host",
		newStdio(),
		newHTTP(),
		newKeystore(),
	)
}
