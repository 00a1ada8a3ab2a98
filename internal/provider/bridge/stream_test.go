package bridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/provider/bridge"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bridge.WriteFrame(&buf, []byte(`{"id":1}`)))
	assert.Equal(t, []byte{8, 0, 0, 0}, buf.Bytes()[:4])

	frame, err := bridge.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(frame))
}

func TestReadFrameRejectsOversizedFrames(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := bridge.ReadFrame(buf)
	assert.ErrorIs(t, err, bridge.ErrFrameTooLarge)
}

// echoHost answers every request with its own method name, holding the first
// request back until the second one has arrived so responses go out in reverse.
func echoHost(t *testing.T, conn net.Conn) {
	t.Helper()

	var held []bridge.Request
	for {
		frame, err := bridge.ReadFrame(conn)
		if err != nil {
			return
		}
		var req bridge.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			return
		}
		held = append(held, req)
		if len(held) < 2 {
			continue
		}
		for i := len(held) - 1; i >= 0; i-- {
			resp := fmt.Sprintf(`{"id":%d,"result":%q}`, held[i].ID, held[i].Method)
			if err := bridge.WriteFrame(conn, []byte(resp)); err != nil {
				return
			}
		}
		held = held[:0]
	}
}

func TestStreamChannelDemultiplexesConcurrentCalls(t *testing.T) {
	client, host := net.Pipe()
	go echoHost(t, host)

	channel := bridge.NewStreamChannel(client, nil)
	defer channel.Close()
	transport := bridge.NewTransport(channel)

	var wg sync.WaitGroup
	results := make(map[string]string)
	var mu sync.Mutex
	for _, method := range []string{"eth_accounts", "eth_chainId"} {
		wg.Add(1)
		go func(method string) {
			defer wg.Done()
			result, err := transport.Call(context.Background(), method, nil)
			assert.NoError(t, err)

			var got string
			assert.NoError(t, json.Unmarshal(result, &got))
			mu.Lock()
			results[method] = got
			mu.Unlock()
		}(method)
	}
	wg.Wait()

	assert.Equal(t, map[string]string{"eth_accounts": "eth_accounts", "eth_chainId": "eth_chainId"}, results)
}

func TestStreamChannelDeliversPushes(t *testing.T) {
	client, host := net.Pipe()
	pushed := make(chan string, 1)

	channel := bridge.NewStreamChannel(client, func(event string, data json.RawMessage) {
		pushed <- event + " " + string(data)
	})
	defer channel.Close()

	require.NoError(t, bridge.WriteFrame(host, []byte(`{"event":"chainChanged","data":"0x89"}`)))

	select {
	case got := <-pushed:
		assert.Equal(t, `chainChanged "0x89"`, got)
	case <-time.After(time.Second):
		t.Fatal("push not delivered")
	}
}

func TestStreamChannelFailsPendingCallsOnClose(t *testing.T) {
	client, host := net.Pipe()
	go func() {
		_, _ = bridge.ReadFrame(host)
		host.Close()
	}()

	channel := bridge.NewStreamChannel(client, nil)
	transport := bridge.NewTransport(channel)

	_, err := transport.Call(t.Context(), "eth_accounts", nil)
	require.Error(t, err)
	assert.Equal(t, bridge.CodeInternal, bridge.AsRPCError(err).Code)

	<-channel.Done()
	assert.False(t, channel.Available())

	_, err = transport.Call(t.Context(), "eth_accounts", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bridge.ErrBridgeUnavailable)
}

func TestStreamChannelHonoursContext(t *testing.T) {
	client, host := net.Pipe()
	go func() {
		_, _ = bridge.ReadFrame(host)
	}()

	channel := bridge.NewStreamChannel(client, nil)
	defer channel.Close()
	transport := bridge.NewTransport(channel)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := transport.Call(ctx, "eth_accounts", nil)
	require.Error(t, err)
	assert.Equal(t, bridge.CodeInternal, bridge.AsRPCError(err).Code)
}

func TestStreamChannelCloseReportsChannelClosed(t *testing.T) {
	client, host := net.Pipe()
	defer host.Close()

	channel := bridge.NewStreamChannel(client, nil)
	require.NoError(t, channel.Close())

	<-channel.Done()
	assert.ErrorIs(t, channel.Err(), bridge.ErrChannelClosed)
}

func TestDialProcessCloseWaitsForHost(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	channel, err := bridge.DialProcess(t.Context(), "cat")
	require.NoError(t, err)

	// cat echoes the request frame, which carries the id and reads as a response.
	result, err := channel.Call(t.Context(), 1, []byte(`{"id":1,"method":"eth_chainId"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"method":"eth_chainId"}`, string(result.(json.RawMessage)))

	require.NoError(t, channel.Close())
	<-channel.Done()
	assert.ErrorIs(t, channel.Err(), bridge.ErrChannelClosed)
}

func TestStreamChannelPushHandlerMayCall(t *testing.T) {
	client, host := net.Pipe()
	go echoHost(t, host)

	var channel *bridge.StreamChannel
	answered := make(chan string, 1)
	channel = bridge.NewStreamChannel(client, func(_ string, _ json.RawMessage) {
		transport := bridge.NewTransport(channel)
		var wg sync.WaitGroup
		for _, method := range []string{"eth_accounts", "eth_chainId"} {
			wg.Add(1)
			go func(method string) {
				defer wg.Done()
				_, _ = transport.Call(t.Context(), method, nil)
			}(method)
		}
		wg.Wait()
		answered <- "done"
	})
	defer channel.Close()

	require.NoError(t, bridge.WriteFrame(host, []byte(`{"event":"chainChanged","data":"0x89"}`)))

	select {
	case got := <-answered:
		assert.Equal(t, "done", got)
	case <-time.After(2 * time.Second):
		t.Fatal("push handler blocked on its own calls")
	}
}
