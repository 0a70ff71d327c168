package solbc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-checkout/internal/blockchain"
	solrpc "github.com/rovshanmuradov/solana-checkout/internal/blockchain/solbc/rpc"
)

const testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls with canned results keyed by method.
type fakeNode struct {
	mu       sync.Mutex
	results  map[string]string
	requests []rpcRequest
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	result, ok := f.results[req.Method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
}

func (f *fakeNode) last() rpcRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, results map[string]string) (*Client, *fakeNode) {
	node := &fakeNode{results: results}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zaptest.NewLogger(t)), node
}

func TestSendRawTransactionUsesSettlementOptions(t *testing.T) {
	client, node := newTestClient(t, map[string]string{
		"sendTransaction": `"` + testSignature + `"`,
	})
	raw := []byte{1, 2, 3, 4}

	sig, err := client.SendRawTransaction(context.Background(), raw, DefaultSendOptions)
	require.NoError(t, err)
	assert.Equal(t, testSignature, sig.String())

	req := node.last()
	require.Len(t, req.Params, 2)
	var encoded string
	require.NoError(t, json.Unmarshal(req.Params[0], &encoded))
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), encoded)

	var opts map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Params[1], &opts))
	assert.Equal(t, "finalized", opts["preflightCommitment"])
	assert.EqualValues(t, 10, opts["maxRetries"])
}

func TestSendRawTransactionRejectsEmptyPayload(t *testing.T) {
	client, _ := newTestClient(t, nil)
	_, err := client.SendRawTransaction(context.Background(), nil, DefaultSendOptions)
	assert.ErrorIs(t, err, solrpc.ErrEmptyTransaction)
}

func TestSendRawTransactionWrapsRPCError(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{})
	_, err := client.SendRawTransaction(context.Background(), []byte{1}, DefaultSendOptions)
	require.Error(t, err)
	var rpcErr *solrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "sendTransaction", rpcErr.Method)
}

func TestGetSignatureStatusSearchesHistory(t *testing.T) {
	client, node := newTestClient(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":90},"value":[{"slot":88,"confirmations":null,"err":{"InstructionError":[0,{"Custom":1}]},"status":{"Err":{"InstructionError":[0,{"Custom":1}]}},"confirmationStatus":"finalized"}]}`,
	})

	status, err := client.GetSignatureStatus(context.Background(), solana.MustSignatureFromBase58(testSignature))
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.Equal(t, uint64(88), status.Slot)
	assert.Equal(t, rpc.ConfirmationStatusFinalized, status.ConfirmationStatus)

	payload, err := json.Marshal(status.Err)
	require.NoError(t, err)
	assert.JSONEq(t, `{"InstructionError":[0,{"Custom":1}]}`, string(payload))

	req := node.last()
	require.Len(t, req.Params, 2)
	var opts map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Params[1], &opts))
	assert.Equal(t, true, opts["searchTransactionHistory"])
}

func TestGetSignatureStatusNotFound(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":90},"value":[null]}`,
	})
	status, err := client.GetSignatureStatus(context.Background(), solana.MustSignatureFromBase58(testSignature))
	require.NoError(t, err)
	assert.False(t, status.Found)
}

func TestGetSignatureStatusEmptyResult(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":90},"value":[]}`,
	})
	_, err := client.GetSignatureStatus(context.Background(), solana.MustSignatureFromBase58(testSignature))
	assert.ErrorIs(t, err, solrpc.ErrInvalidResponse)
}

func TestPing(t *testing.T) {
	client, node := newTestClient(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":1},"value":{"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N","lastValidBlockHeight":100}}`,
	})
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "getLatestBlockhash", node.last().Method)

	down, _ := newTestClient(t, map[string]string{})
	err := down.Ping(context.Background())
	var rpcErr *solrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "getLatestBlockhash", rpcErr.Method)
}

func TestGetBalance(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":2500000000}`,
	})
	balance, err := client.GetBalance(context.Background(), solana.SystemProgramID, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), balance)
}

var _ blockchain.Client = (*Client)(nil)
