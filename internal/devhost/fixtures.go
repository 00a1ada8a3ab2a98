package devhost

import (
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github/chapool/wallet-provider/internal/provider/bridge"
)

// Fixture is a canned answer for one method.
type Fixture struct {
	Result any           `toml:"result"`
	Error  *FixtureError `toml:"error"`
}

// FixtureError is a canned JSON-RPC error.
type FixtureError struct {
	Code    int    `toml:"code"`
	Message string `toml:"message"`
	Data    any    `toml:"data"`
}

// Fixtures maps method names to canned answers.
//
// Example file:
//
//	[methods.eth_blockNumber]
//	result = "0x10"
//
//	[methods.eth_estimateGas.error]
//	code = -32000
//	message = "insufficient funds"
type Fixtures map[string]Fixture

type fixturesFile struct {
	Methods Fixtures `toml:"methods"`
}

// LoadFixtures reads a TOML fixtures file.
func LoadFixtures(path string) (Fixtures, error) {
	var file fixturesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to decode fixtures file %s", path)
	}
	return file.Methods, nil
}

// ParseFixtures decodes fixtures from TOML text.
func ParseFixtures(data string) (Fixtures, error) {
	var file fixturesFile
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to decode fixtures")
	}
	return file.Methods, nil
}

// answer returns the fixture outcome for method, if one exists.
func (f Fixtures) answer(method string) (json.RawMessage, bool, error) {
	fixture, ok := f[method]
	if !ok {
		return nil, false, nil
	}

	if fixture.Error != nil {
		return nil, true, bridge.NewRPCError(fixture.Error.Code, fixture.Error.Message, fixture.Error.Data)
	}

	result, err := json.Marshal(fixture.Result)
	if err != nil {
		return nil, true, errors.Wrapf(err, "failed to encode fixture for %s", method)
	}

	return result, true, nil
}
