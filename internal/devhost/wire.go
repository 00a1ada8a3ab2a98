//go:build wireinject

package devhost

import (
	"context"

	"github.com/google/wire"
	"github/chapool/wallet-provider/internal/config"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serverSet groups the providers required for serving a host over HTTP.
var serverSet = wire.NewSet(
	NewServer,
	NewRegistry,
	NewHostWithRegistry,
)

// InitNewServer returns a Server around a freshly derived host. The cleanup
// function closes the host.
func InitNewServer(
	_ context.Context,
	_ config.Host,
	_ config.Logger,
) (*Server, func(), error) {
	wire.Build(serverSet)
	return new(Server), nil, nil
}
