package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ragebet/ragebet-go/core"
	"github.com/ragebet/ragebet-go/pkg/eth"
)

const (
	defaultConfirmPoll    = 2 * time.Second
	defaultConfirmTimeout = 2 * time.Minute
)

// Config holds gateway construction parameters. Addresses may be left as
// placeholders; the matching handle is then nil and reads return defaults.
type Config struct {
	TokenAddress  string
	MarketAddress string
	NFTAddress    string
	ChainID       *big.Int

	// Receipt polling. One mined block is treated as final.
	ConfirmPoll    time.Duration
	ConfirmTimeout time.Duration
}

// handle is a call-ready contract binding.
type handle struct {
	addr common.Address
	abi  abi.ABI
}

// Gateway provides typed access to the three Rage Bet contracts.
type Gateway struct {
	backend Backend
	signer  *eth.Wallet
	chainID *big.Int

	token  *handle
	market *handle
	nft    *handle

	confirmPoll    time.Duration
	confirmTimeout time.Duration
}

// New builds a gateway. Invalid or unset addresses yield nil handles rather
// than errors; no calls are ever attempted through a nil handle.
func New(backend Backend, signer *eth.Wallet, cfg Config) *Gateway {
	g := &Gateway{
		backend:        backend,
		signer:         signer,
		chainID:        cfg.ChainID,
		token:          newHandle(cfg.TokenAddress, tokenABI),
		market:         newHandle(cfg.MarketAddress, marketABI),
		nft:            newHandle(cfg.NFTAddress, nftABI),
		confirmPoll:    cfg.ConfirmPoll,
		confirmTimeout: cfg.ConfirmTimeout,
	}
	if g.confirmPoll <= 0 {
		g.confirmPoll = defaultConfirmPoll
	}
	if g.confirmTimeout <= 0 {
		g.confirmTimeout = defaultConfirmTimeout
	}
	return g
}

func newHandle(addr string, contractABI abi.ABI) *handle {
	if addr == "" || addr == "0x..." || len(addr) < 10 || !common.IsHexAddress(addr) {
		return nil
	}
	return &handle{addr: common.HexToAddress(addr), abi: contractABI}
}

// Configured reports whether all three contract handles are usable.
func (g *Gateway) Configured() bool {
	return g.token != nil && g.market != nil && g.nft != nil
}

// Spender returns the prediction-market address, the spender for approvals.
func (g *Gateway) Spender() common.Address {
	if g.market == nil {
		return common.Address{}
	}
	return g.market.addr
}

// --- Token reads ---

// GetTokenBalance returns the RAGE balance in base units. A nil handle
// returns zero so the UI stays usable when misconfigured.
func (g *Gateway) GetTokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	if g.token == nil {
		return big.NewInt(0), nil
	}

	out, err := g.call(ctx, g.token, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return out[0].(*big.Int), nil
}

// GetAllowance returns the amount the prediction market may spend on behalf
// of owner, in base units.
func (g *Gateway) GetAllowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	if g.token == nil || g.market == nil {
		return big.NewInt(0), nil
	}

	out, err := g.call(ctx, g.token, "allowance", owner, g.market.addr)
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	return out[0].(*big.Int), nil
}

// Approve grants the prediction market a spending allowance and waits for
// confirmation.
func (g *Gateway) Approve(ctx context.Context, amount *big.Int) (*gethtypes.Receipt, error) {
	if g.token == nil || g.market == nil {
		return nil, core.ErrContractMisconfigured
	}
	return g.transact(ctx, g.token, "approve", g.market.addr, amount)
}

// --- Market reads ---

// GetMarket reads a market record. A nil handle returns (nil, nil).
func (g *Gateway) GetMarket(ctx context.Context, marketID *big.Int) (*core.Market, error) {
	if g.market == nil {
		return nil, nil
	}

	out, err := g.call(ctx, g.market, "getMarket", marketID)
	if err != nil {
		return nil, fmt.Errorf("getMarket %s: %w", marketID, err)
	}

	endTime := out[5].(*big.Int)
	return &core.Market{
		ID:                 new(big.Int).Set(marketID),
		MatchID:            out[0].(string),
		Team1:              out[1].(string),
		Team2:              out[2].(string),
		TrashTalk:          out[3].(string),
		Prediction:         out[4].(string),
		EndTime:            time.Unix(endTime.Int64(), 0),
		Resolved:           out[6].(bool),
		AIWasRight:         out[7].(bool),
		TotalAgreeStake:    out[8].(*big.Int),
		TotalDisagreeStake: out[9].(*big.Int),
	}, nil
}

// MarketCount returns the number of markets created so far.
func (g *Gateway) MarketCount(ctx context.Context) (int64, error) {
	if g.market == nil {
		return 0, nil
	}

	out, err := g.call(ctx, g.market, "marketCounter")
	if err != nil {
		return 0, fmt.Errorf("marketCounter: %w", err)
	}
	return out[0].(*big.Int).Int64(), nil
}

// GetUserStats reads the per-user betting record. A nil handle returns
// (nil, nil).
func (g *Gateway) GetUserStats(ctx context.Context, user common.Address) (*core.UserStats, error) {
	if g.market == nil {
		return nil, nil
	}

	out, err := g.call(ctx, g.market, "getUserStats", user)
	if err != nil {
		return nil, fmt.Errorf("getUserStats: %w", err)
	}

	return &core.UserStats{
		CorrectBets:   out[0].(*big.Int).Uint64(),
		TotalBets:     out[1].(*big.Int).Uint64(),
		Winnings:      out[2].(*big.Int),
		InHallOfFame:  out[3].(bool),
		InHallOfShame: out[4].(bool),
		Accuracy:      out[5].(*big.Int).Uint64(),
	}, nil
}

// --- Market writes ---

// EstimatePlaceBet simulates the bet transaction without sending it. A revert
// is decoded into the error taxonomy so a doomed transaction never spends gas.
func (g *Gateway) EstimatePlaceBet(ctx context.Context, marketID *big.Int, agreeWithAI bool, amount *big.Int) (uint64, error) {
	if g.market == nil {
		return 0, core.ErrContractMisconfigured
	}

	data, err := g.market.abi.Pack("placeBet", marketID, agreeWithAI, amount)
	if err != nil {
		return 0, fmt.Errorf("pack placeBet: %w", err)
	}

	gas, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: g.from(),
		To:   &g.market.addr,
		Data: data,
	})
	if err != nil {
		return 0, core.Classify(err)
	}
	return gas, nil
}

// PlaceBet stakes amount base units on whether the AI prediction will be
// correct, and waits for one block of confirmation.
func (g *Gateway) PlaceBet(ctx context.Context, marketID *big.Int, agreeWithAI bool, amount *big.Int) (*gethtypes.Receipt, error) {
	if g.market == nil {
		return nil, core.ErrContractMisconfigured
	}
	return g.transact(ctx, g.market, "placeBet", marketID, agreeWithAI, amount)
}

// ClaimWinnings collects the payout for a resolved market.
func (g *Gateway) ClaimWinnings(ctx context.Context, marketID *big.Int) (*gethtypes.Receipt, error) {
	if g.market == nil {
		return nil, core.ErrContractMisconfigured
	}
	return g.transact(ctx, g.market, "claimWinnings", marketID)
}

// CreateMarket opens a new market (owner only).
func (g *Gateway) CreateMarket(ctx context.Context, matchID, team1, team2, trashTalk, prediction string, duration time.Duration) (*gethtypes.Receipt, error) {
	if g.market == nil {
		return nil, core.ErrContractMisconfigured
	}
	seconds := big.NewInt(int64(duration / time.Second))
	return g.transact(ctx, g.market, "createMarket", matchID, team1, team2, trashTalk, prediction, seconds)
}

// ResolveMarket submits the oracle's correctness flag on-chain. The off-chain
// oracle call happens before this; the two steps are not atomic and the
// judgment is re-derived on retry.
func (g *Gateway) ResolveMarket(ctx context.Context, marketID *big.Int, aiWasRight bool) (*gethtypes.Receipt, error) {
	if g.market == nil {
		return nil, core.ErrContractMisconfigured
	}
	return g.transact(ctx, g.market, "resolveMarket", marketID, aiWasRight)
}

// --- NFT reads ---

// GetUserNFTs enumerates the user's bet-receipt NFTs. Individual token read
// failures are skipped; a nil handle returns an empty slice.
func (g *Gateway) GetUserNFTs(ctx context.Context, owner common.Address) ([]core.NFTReceipt, error) {
	if g.nft == nil {
		return nil, nil
	}

	out, err := g.call(ctx, g.nft, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("nft balanceOf: %w", err)
	}
	count := out[0].(*big.Int).Int64()

	receipts := make([]core.NFTReceipt, 0, count)
	for i := int64(0); i < count; i++ {
		idxOut, err := g.call(ctx, g.nft, "tokenOfOwnerByIndex", owner, big.NewInt(i))
		if err != nil {
			continue
		}
		tokenID := idxOut[0].(*big.Int)

		dataOut, err := g.call(ctx, g.nft, "getNFTData", tokenID)
		if err != nil {
			continue
		}

		receipts = append(receipts, core.NFTReceipt{
			TokenID:      tokenID,
			Owner:        owner.Hex(),
			MarketID:     dataOut[0].(*big.Int),
			AgreedWithAI: dataOut[1].(bool),
			Resolved:     dataOut[2].(bool),
			Won:          dataOut[3].(bool),
		})
	}
	return receipts, nil
}

// --- Internal helpers ---

func (g *Gateway) from() common.Address {
	if g.signer == nil {
		return common.Address{}
	}
	return g.signer.Address()
}

func (g *Gateway) call(ctx context.Context, h *handle, method string, args ...interface{}) ([]interface{}, error) {
	data, err := h.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := g.backend.CallContract(ctx, ethereum.CallMsg{
		From: g.from(),
		To:   &h.addr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}

	out, err := h.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// transact packs, signs, sends, and waits for the transaction to be mined.
func (g *Gateway) transact(ctx context.Context, h *handle, method string, args ...interface{}) (*gethtypes.Receipt, error) {
	if g.signer == nil {
		return nil, fmt.Errorf("%w: no signer", core.ErrWalletUnavailable)
	}

	data, err := h.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	nonce, err := g.backend.PendingNonceAt(ctx, g.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gas, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: g.signer.Address(),
		To:   &h.addr,
		Data: data,
	})
	if err != nil {
		return nil, core.Classify(err)
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &h.addr,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := g.signer.SignTx(tx, g.chainID)
	if err != nil {
		return nil, err
	}

	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, core.Classify(err)
	}

	return g.waitMined(ctx, signed.Hash())
}

// waitMined polls for the receipt. One mined block is treated as final.
func (g *Gateway) waitMined(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(g.confirmPoll)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != gethtypes.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx %s reverted", core.ErrTransactionFailed, txHash.Hex())
			}
			return receipt, nil
		}
		if err != nil && err != ethereum.NotFound {
			return nil, fmt.Errorf("receipt %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: confirmation timed out for %s", core.ErrTransactionFailed, txHash.Hex())
		case <-ticker.C:
		}
	}
}
