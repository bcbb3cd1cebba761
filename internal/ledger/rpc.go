package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient wraps a Solana JSON-RPC client for broadcasting transactions
// and polling their confirmation status.
type RPCClient struct {
	endpoint   string
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClient creates a new Solana RPC client for transaction broadcasting.
//
// Parameters:
//   - endpoint: cluster RPC URL (e.g., "https://api.devnet.solana.com")
//   - commitment: level used for preflight simulation and blockhash queries
//
// Returns a client ready to broadcast transactions.
func NewRPCClient(endpoint string, commitment State) *RPCClient {
	if endpoint == "" {
		endpoint = rpc.DevNet_RPC
	}

	return &RPCClient{
		endpoint:   endpoint,
		client:     rpc.New(endpoint),
		commitment: rpcCommitment(commitment),
	}
}

// Endpoint returns the cluster URL this client talks to.
func (c *RPCClient) Endpoint() string {
	return c.endpoint
}

// Send broadcasts a serialized transaction with preflight simulation.
// It returns as soon as the node accepts the transaction; finality is
// observed separately through Status.
//
// Returns:
//   - signature: the transaction signature reported by the node
//   - error: *RejectedError when the node refused the transaction, any
//     other error when the request itself failed
func (c *RPCClient) Send(ctx context.Context, raw []byte) (solana.Signature, error) {
	sig, err := c.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return solana.Signature{}, &RejectedError{Reason: rpcErr.Message}
		}
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// Status queries the signature status, searching transaction history so
// that signatures older than the status cache are still found.
func (c *RPCClient) Status(ctx context.Context, sig solana.Signature) (Status, error) {
	out, err := c.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return Status{}, fmt.Errorf("get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return Status{State: StateNotFound}, nil
	}

	st := out.Value[0]
	if st.Err != nil {
		return Status{State: StateFailed, Slot: st.Slot, Err: describeTxErr(st.Err)}, nil
	}

	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return Status{State: StateFinalized, Slot: st.Slot}, nil
	case rpc.ConfirmationStatusConfirmed:
		return Status{State: StateConfirmed, Slot: st.Slot}, nil
	default:
		return Status{State: StateProcessed, Slot: st.Slot}, nil
	}
}

// LatestBlockhash returns the most recent blockhash at the client commitment.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, errors.New("get latest blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

func rpcCommitment(s State) rpc.CommitmentType {
	switch s {
	case StateProcessed:
		return rpc.CommitmentProcessed
	case StateConfirmed:
		return rpc.CommitmentConfirmed
	default:
		return rpc.CommitmentFinalized
	}
}

// describeTxErr renders the node's structured transaction error as JSON,
// e.g. {"InstructionError":[0,{"Custom":6000}]}.
func describeTxErr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
