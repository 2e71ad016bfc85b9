// Package chain provides the minimal chain-connection capability the
// router needs: the current block height, used only for route-cache
// segregation.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Heights reads the chain head from an Ethereum JSON-RPC endpoint.
type Heights struct {
	client *ethclient.Client
}

// Dial connects to the RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Heights, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Heights{client: client}, nil
}

// NewHeights wraps an existing client.
func NewHeights(client *ethclient.Client) *Heights {
	return &Heights{client: client}
}

// Client exposes the underlying connection for contract calls.
func (h *Heights) Client() *ethclient.Client {
	return h.client
}

// BlockHeight returns the current block number.
func (h *Heights) BlockHeight(ctx context.Context) (uint64, error) {
	return h.client.BlockNumber(ctx)
}

// Close releases the underlying connection.
func (h *Heights) Close() {
	h.client.Close()
}
