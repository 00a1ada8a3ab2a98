package call

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/provider"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/util/command"
)

const (
	legacyFlag = "legacy"
	idFlag     = "id"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <method> [params-json]",
		Short: "Send one request through a provider and print the outcome",
		Long: `Creates a provider connected to the configured host (bridge.url, bridge.command
or an in-process development host) and sends a single request.

With --legacy the request goes through the payload form of the legacy send and
the JSON-RPC envelope is printed instead of the bare result.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			var params any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return errors.Wrap(err, "params must be valid JSON")
				}
			}

			legacy, _ := cmd.Flags().GetBool(legacyFlag)
			id, _ := cmd.Flags().GetInt(idFlag)

			return command.WithProvider(cmd.Context(), cfg, func(ctx context.Context, p *provider.Provider) error {
				if legacy {
					return sendLegacy(ctx, p, id, args[0], params)
				}
				return request(ctx, p, args[0], params)
			})
		},
	}

	cmd.Flags().Bool(legacyFlag, false, "Use the legacy payload send and print the JSON-RPC envelope")
	cmd.Flags().Int(idFlag, 1, "Payload id used with --legacy")

	return cmd
}

func request(ctx context.Context, p *provider.Provider, method string, params any) error {
	result, err := p.Request(ctx, provider.RequestArguments{Method: method, Params: params})
	if err != nil {
		return printJSON(bridge.AsRPCError(err), err)
	}
	return printJSON(result, nil)
}

func sendLegacy(ctx context.Context, p *provider.Provider, id int, method string, params any) error {
	resp, err := p.SendPayload(ctx, provider.Payload{
		ID:      json.RawMessage(strconv.Itoa(id)),
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	return printJSON(resp, err)
}

// printJSON writes v to stdout and passes callErr through so the exit code
// reflects the outcome.
func printJSON(v any, callErr error) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	fmt.Fprintln(os.Stdout, string(out))
	return callErr
}
