package module

import (
	"context"
	"encoding/hex"
	"math"
	"time"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

const balanceKey = "balance"

type mint struct {
	base
}

func newMint(deps Deps) Client {
	m := &mint{base: newBase(KindMint, deps)}
	m.ops = []entry{
		infoOp(&m.base),
		{
			Operation: Operation{Name: "balance", Summary: "Show the e-cash balance held locally"},
			run:       m.balance,
		},
		{
			Operation: Operation{Name: "reissue", Mutating: true, Summary: "Redeem out-of-band notes into the wallet", Args: []string{"notes"}},
			run:       m.reissue,
		},
		{
			Operation: Operation{Name: "spend", Mutating: true, Summary: "Take notes out of the wallet for out-of-band transfer", Args: []string{"amount"}},
			run:       m.spend,
		},
	}
	return m
}

// Balance is the result of mint balance.
type Balance struct {
	BalanceMsat uint64 `json:"balance_msat"`
}

func (m *mint) balance(ctx context.Context, _ Args) (any, error) {
	bal, err := m.state.uint(ctx, balanceKey)
	if err != nil {
		return nil, err
	}
	return &Balance{BalanceMsat: bal}, nil
}

// Reissue is the result of mint reissue.
type Reissue struct {
	Index       uint64 `json:"index"`
	AmountMsat  uint64 `json:"amount_msat"`
	BalanceMsat uint64 `json:"balance_msat"`
}

func (m *mint) reissue(ctx context.Context, args Args) (any, error) {
	notes, err := args.String("notes")
	if err != nil {
		return nil, err
	}
	bal, err := m.state.uint(ctx, balanceKey)
	if err != nil {
		return nil, err
	}

	var out Reissue
	err = m.submit(ctx, func(index uint64, child []byte) ([]storage.Write, error) {
		var res struct {
			AmountMsat uint64 `json:"amount_msat"`
		}
		params := map[string]any{"notes": notes, "nonce": hex.EncodeToString(child)}
		if err := m.deps.API.RequestQuorum(ctx, m.method("reissue"), params, &res); err != nil {
			return nil, err
		}
		if res.AmountMsat == 0 {
			return nil, domain.ErrModule.WithDetails("federation redeemed no value")
		}
		if res.AmountMsat > math.MaxUint64-bal {
			return nil, domain.ErrModule.WithDetails("reissued amount overflows the balance")
		}

		out = Reissue{Index: index, AmountMsat: res.AmountMsat, BalanceMsat: bal + res.AmountMsat}
		rec, err := m.state.record("reissues", index, noteRecord{AmountMsat: res.AmountMsat, CreatedAt: stamp()})
		if err != nil {
			return nil, err
		}
		return []storage.Write{rec, m.state.setUint(balanceKey, out.BalanceMsat)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Spend is the result of mint spend.
type Spend struct {
	Index       uint64 `json:"index"`
	Notes       string `json:"notes"`
	AmountMsat  uint64 `json:"amount_msat"`
	BalanceMsat uint64 `json:"balance_msat"`
}

func (m *mint) spend(ctx context.Context, args Args) (any, error) {
	amount, err := args.Uint64("amount")
	if err != nil {
		return nil, err
	}
	bal, err := m.state.uint(ctx, balanceKey)
	if err != nil {
		return nil, err
	}
	if amount > bal {
		return nil, domain.ErrModule.WithDetailsf("insufficient balance: have %d msat, need %d msat", bal, amount)
	}

	var out Spend
	err = m.submit(ctx, func(index uint64, child []byte) ([]storage.Write, error) {
		var res struct {
			Notes string `json:"notes"`
		}
		params := map[string]any{"amount_msat": amount, "nonce": hex.EncodeToString(child)}
		if err := m.deps.API.RequestQuorum(ctx, m.method("spend"), params, &res); err != nil {
			return nil, err
		}
		if res.Notes == "" {
			return nil, domain.ErrModule.WithDetails("federation returned no notes")
		}

		out = Spend{Index: index, Notes: res.Notes, AmountMsat: amount, BalanceMsat: bal - amount}
		rec, err := m.state.record("spends", index, noteRecord{AmountMsat: amount, CreatedAt: stamp()})
		if err != nil {
			return nil, err
		}
		return []storage.Write{rec, m.state.setUint(balanceKey, out.BalanceMsat)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type noteRecord struct {
	AmountMsat uint64    `json:"amount_msat"`
	CreatedAt  time.Time `json:"created_at"`
}
