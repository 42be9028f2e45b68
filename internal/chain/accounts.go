package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/openwalletd/yieldfold/internal/account"
	"github.com/openwalletd/yieldfold/internal/digest"
	"github.com/openwalletd/yieldfold/internal/token"
)

// transferLogWindow limits how far back the transfer-log scan reaches. The
// history merge dedupes by operation id, so a bounded window only affects
// how much history one run can backfill.
const transferLogWindow = uint64(500_000)

// AccountID names one wallet/token holding.
func AccountID(wallet common.Address, tokenID string) string {
	return fmt.Sprintf("%s:%s", wallet.Hex(), tokenID)
}

// FetchAccounts resolves the post-sync account list for one wallet: for each
// input account (including placeholders injected before the sync round) it
// queries the current balance and the transfer history of that token.
func (c *Client) FetchAccounts(ctx context.Context, wallet common.Address, registry token.Registry, accounts []*account.Account) ([]*account.Account, error) {
	out := make([]*account.Account, 0, len(accounts))
	for _, acct := range accounts {
		tok, err := registry.ByID(acct.TokenID)
		if err != nil {
			// Unknown tokens cannot be fetched; keep the account as-is.
			out = append(out, acct)
			continue
		}

		fetched, err := c.fetchAccount(ctx, wallet, tok, acct)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", acct.ID, err)
		}
		out = append(out, fetched)
	}
	return out, nil
}

// SeedAccounts builds the initial pre-sync account list for a wallet: one
// account per listed plain token. Derivative holdings surface via the
// placeholder injection that runs before the sync round.
func SeedAccounts(wallet common.Address, registry token.Registry, baseCurrency string) []*account.Account {
	toks := registry.TokensFor(baseCurrency, token.ListOptions{})
	out := make([]*account.Account, 0, len(toks))
	for _, tok := range toks {
		if tok.Kind != token.Plain {
			continue
		}
		out = append(out, &account.Account{
			ID:        AccountID(wallet, tok.ID),
			TokenID:   tok.ID,
			Balance:   new(big.Int),
			Spendable: new(big.Int),
			CreatedAt: time.Now().UTC(),
		})
	}
	return out
}

func (c *Client) fetchAccount(ctx context.Context, wallet common.Address, tok *token.Token, prev *account.Account) (*account.Account, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	ethClient, _, err := c.failover.get()
	if err != nil {
		return nil, fmt.Errorf("no RPC endpoint available: %w", err)
	}
	contract := bind.NewBoundContract(tok.Address, c.parsedABI, ethClient, ethClient, ethClient)

	var balanceResult []any
	err = c.retryWithBackoff(rpcCtx, func() error {
		return contract.Call(&bind.CallOpts{Context: rpcCtx}, &balanceResult, "balanceOf", wallet)
	})
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	balance := balanceResult[0].(*big.Int)

	id := prev.ID
	if digest.IsStub(id) && balance.Sign() > 0 {
		// The placeholder found a real holding; promote it to a regular id.
		id = AccountID(wallet, tok.ID)
	}

	ops, err := c.fetchTransferOperations(ctx, ethClient, wallet, tok, id)
	if err != nil {
		return nil, err
	}

	out := &account.Account{
		ID:         id,
		TokenID:    tok.ID,
		Balance:    balance,
		Spendable:  new(big.Int).Set(balance),
		Operations: account.MergeOperations(prev.Operations, ops),
		Pending:    prev.Pending,
		CreatedAt:  prev.CreatedAt,
	}
	return out, nil
}

// fetchTransferOperations scans ERC-20 Transfer logs touching the wallet and
// maps them to incoming/outgoing operations.
func (c *Client) fetchTransferOperations(ctx context.Context, ethClient ethereum.LogFilterer, wallet common.Address, tok *token.Token, accountID string) ([]account.Operation, error) {
	head, err := c.blockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	from := uint64(0)
	if head > transferLogWindow {
		from = head - transferLogWindow
	}

	transferTopic := c.parsedABI.Events["Transfer"].ID
	walletTopic := common.BytesToHash(wallet.Bytes())

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{tok.Address},
	}

	var ops []account.Operation
	blockTimes := make(map[uint64]time.Time)

	// Two passes: wallet as recipient, wallet as sender.
	for _, topics := range [][][]common.Hash{
		{{transferTopic}, nil, {walletTopic}},
		{{transferTopic}, {walletTopic}, nil},
	} {
		query.Topics = topics
		logs, err := ethClient.FilterLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}
		for _, lg := range logs {
			if len(lg.Topics) < 3 {
				continue
			}
			op, err := c.transferToOperation(ctx, lg, wallet, accountID, blockTimes)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}

	account.SortOperations(ops)
	return ops, nil
}

func (c *Client) transferToOperation(ctx context.Context, lg types.Log, wallet common.Address, accountID string, blockTimes map[uint64]time.Time) (account.Operation, error) {
	to := common.BytesToAddress(lg.Topics[2].Bytes())

	opType := account.OpOut
	if to == wallet {
		opType = account.OpIn
	}

	date, ok := blockTimes[lg.BlockNumber]
	if !ok {
		var err error
		date, err = c.blockTime(ctx, lg.BlockNumber)
		if err != nil {
			return account.Operation{}, fmt.Errorf("block %d header: %w", lg.BlockNumber, err)
		}
		blockTimes[lg.BlockNumber] = date
	}

	hash := lg.TxHash.Hex()
	return account.Operation{
		ID:        fmt.Sprintf("%s-%s-%s", accountID, hash, opType),
		Hash:      hash,
		Date:      date,
		Type:      opType,
		Value:     new(big.Int).SetBytes(lg.Data),
		AccountID: accountID,
		Extra: map[string]string{
			"blockNumber": fmt.Sprintf("%d", lg.BlockNumber),
		},
	}, nil
}

func (c *Client) blockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.retryWithBackoff(ctx, func() error {
		ethClient, _, err := c.failover.get()
		if err != nil {
			return err
		}
		head, err = ethClient.BlockNumber(ctx)
		return err
	})
	return head, err
}

func (c *Client) blockTime(ctx context.Context, number uint64) (time.Time, error) {
	var ts uint64
	err := c.retryWithBackoff(ctx, func() error {
		ethClient, _, err := c.failover.get()
		if err != nil {
			return err
		}
		header, err := ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		ts = header.Time
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}
