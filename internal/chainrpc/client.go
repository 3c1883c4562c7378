// Package chainrpc is a concrete RemarkSource: a substrate-style
// JSON-RPC-over-websocket client. It is grounded on
// _examples/original_source/indexer.py's connect_substrate() (retry,
// reconnect, and logging the chain's ss58_format/token_symbol at connect
// time) and on gorilla/websocket, used the same way two other pack
// repos (a BNB Smart Chain Erigon fork and go-ethereum) use it for their own JSON-RPC
// transports.
package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/runner"
)

// ChainInfo is the chain metadata logged once at connect time, mirroring
// the original process's startup log line.
type ChainInfo struct {
	SS58Format  int
	TokenSymbol string
}

// Client is a single-connection JSON-RPC-over-websocket RemarkSource. It
// assumes one in-flight request at a time, matching the Runner's
// single-threaded model (spec.md §5): nothing here introduces concurrency
// the pipeline doesn't already have.
type Client struct {
	url   string
	chain string
	log   zerolog.Logger

	conn   *websocket.Conn
	nextID uint64
	info   ChainInfo
}

// Dial opens the websocket connection, then verifies the reported chain
// identifier matches chain (a mismatch aborts startup per spec.md §6).
func Dial(ctx context.Context, url, chain string, log zerolog.Logger) (*Client, error) {
	c := &Client{url: url, chain: chain, log: log}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", runner.ErrTransport, c.url, err)
	}
	c.conn = conn

	if err := c.loadChainInfo(ctx); err != nil {
		_ = c.conn.Close()
		return err
	}

	c.log.Info().
		Str("chain", c.chain).
		Int("ss58_format", c.info.SS58Format).
		Str("token_symbol", c.info.TokenSymbol).
		Msg("chainrpc: connected")
	return nil
}

// Reconnect satisfies runner.Source: it tears down and re-establishes the
// connection after a transport error.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return c.dial(ctx)
}

// ChainInfo returns the chain metadata captured at connect time.
func (c *Client) ChainInfo() ChainInfo { return c.info }

func (c *Client) loadChainInfo(ctx context.Context) error {
	var props struct {
		SS58Format  int    `json:"ss58Format"`
		TokenSymbol string `json:"tokenSymbol"`
	}
	if err := c.call(ctx, "system_properties", nil, &props); err != nil {
		return err
	}
	c.info = ChainInfo{SS58Format: props.SS58Format, TokenSymbol: props.TokenSymbol}

	var reportedChain string
	if err := c.call(ctx, "system_chain", nil, &reportedChain); err != nil {
		return err
	}
	if !strings.EqualFold(reportedChain, c.chain) {
		return fmt.Errorf("chainrpc: expected chain %q, got %q", c.chain, reportedChain)
	}
	return nil
}

// FinalizedHeight satisfies runner.Source.
func (c *Client) FinalizedHeight(ctx context.Context) (uint64, error) {
	var hash string
	if err := c.call(ctx, "chain_getFinalizedHead", nil, &hash); err != nil {
		return 0, err
	}

	var header struct {
		Number string `json:"number"`
	}
	if err := c.call(ctx, "chain_getHeader", []any{hash}, &header); err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(strings.TrimPrefix(header.Number, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("chainrpc: parse header number %q: %w", header.Number, err)
	}
	return n, nil
}

// wireRemark is the JSON shape of one dot-20 remark as reported by the
// chain-side crawler's dot20_remarksAtBlock RPC.
type wireRemark struct {
	ExtrinsicIndex uint64          `json:"extrinsic_index"`
	BatchallIndex  uint64          `json:"batchall_index"`
	Origin         string          `json:"origin"`
	Memo           json.RawMessage `json:"memo"`
	Text           string          `json:"text"`
}

// RemarksAt satisfies runner.Source: it fetches the ordered dot-20 remark
// list for blockNum, already filtered to protocol dot-20 by the crawler
// side, per spec.md §6.
func (c *Client) RemarksAt(ctx context.Context, blockNum uint64) ([]model.Remark, error) {
	var raw []wireRemark
	if err := c.call(ctx, "dot20_remarksAtBlock", []any{blockNum}, &raw); err != nil {
		return nil, err
	}

	out := make([]model.Remark, 0, len(raw))
	for _, w := range raw {
		var memo model.Memo
		if err := json.Unmarshal(w.Memo, &memo); err != nil {
			// A malformed memo is a data error, not a transport error;
			// basefilter's structural check would reject it anyway, but
			// we cannot even unmarshal it here, so skip it and move on.
			c.log.Warn().Err(err).Uint64("block", blockNum).Msg("chainrpc: dropping remark with unparseable memo")
			continue
		}
		out = append(out, model.Remark{
			BlockNum:       blockNum,
			ExtrinsicIndex: w.ExtrinsicIndex,
			BatchallIndex:  w.BatchallIndex,
			Origin:         w.Origin,
			Memo:           memo,
			Text:           w.Text,
		})
	}
	return out, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	id := atomic.AddUint64(&c.nextID, 1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: write %s: %v", runner.ErrTransport, method, err)
	}

	_ = c.conn.SetReadDeadline(deadline)
	var resp rpcResponse
	if err := c.conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("%w: read %s: %v", runner.ErrTransport, method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: %s: rpc error %d: %s", runner.ErrTransport, method, resp.Error.Code, resp.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("chainrpc: decode %s result: %w", method, err)
	}
	return nil
}
