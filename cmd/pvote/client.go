package main

import (
	"context"
	"fmt"

	"github.com/calehh/pvote/crypto"
	"github.com/calehh/pvote/state"
	"github.com/calehh/pvote/tx"
	"github.com/calehh/pvote/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
)

type rpcClient struct {
	cli *http.HTTP
}

func newClient(url string) (*rpcClient, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return &rpcClient{cli: cli}, nil
}

func (c *rpcClient) chainID(ctx context.Context) (string, error) {
	gres, err := c.cli.Genesis(ctx)
	if err != nil {
		return "", fmt.Errorf("get chain genesis: %w", err)
	}
	return gres.Genesis.ChainID, nil
}

// query returns the response value or an error carrying the response code.
func (c *rpcClient) query(ctx context.Context, path string, data []byte) ([]byte, error) {
	res, err := c.cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != types.CodeOK {
		return nil, fmt.Errorf("query %s: code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

func (c *rpcClient) account(ctx context.Context, address string) (*state.Account, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address: %v", address)
	}
	dat, err := c.query(ctx, "/accounts/", []byte(address))
	if err != nil {
		return nil, err
	}
	var act state.Account
	if err := act.UnmarshalJSON(dat); err != nil {
		return nil, err
	}
	return &act, nil
}

type txArguments struct {
	Url    string
	Key    string
	Nonce  int64
	NoSend bool
	Commit bool
}

// txResult is printed for every broadcast transaction.
type txResult struct {
	Hash   string  `json:"hash"`
	Code   uint32  `json:"code"`
	Log    string  `json:"log,omitempty"`
	Height int64   `json:"height,omitempty"`
	Id     *uint64 `json:"id,omitempty"`
}

// signTx fills in the nonce when it is negative and signs btx for the
// chain served at args.Url.
func (c *rpcClient) signTx(ctx context.Context, args *txArguments, btx *tx.Tx) (*crypto.Key, error) {
	key, err := crypto.LoadKeyFile(args.Key)
	if err != nil {
		return nil, err
	}
	chainId, err := c.chainID(ctx)
	if err != nil {
		return nil, err
	}
	if args.Nonce < 0 {
		act, err := c.account(ctx, key.Address())
		if err != nil {
			return nil, err
		}
		btx.Nonce = act.Nonce
	} else {
		btx.Nonce = uint64(args.Nonce)
	}
	if err := btx.Sign(key, chainId); err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return key, nil
}

func (c *rpcClient) broadcast(ctx context.Context, args *txArguments, dat []byte) (*txResult, error) {
	if args.Commit {
		res, err := c.cli.BroadcastTxCommit(ctx, dat)
		if err != nil {
			return nil, fmt.Errorf("broadcast tx: %w", err)
		}
		out := &txResult{Hash: res.Hash.String(), Height: res.Height}
		if res.CheckTx.Code != types.CodeOK {
			out.Code, out.Log = res.CheckTx.Code, res.CheckTx.Log
			return out, nil
		}
		out.Code, out.Log = res.TxResult.Code, res.TxResult.Log
		if id, ok := types.DecodeProposalID(res.TxResult.Data); ok {
			out.Id = &id
		}
		return out, nil
	}
	res, err := c.cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}
	return &txResult{Hash: res.Hash.String(), Code: res.Code, Log: res.Log}, nil
}
