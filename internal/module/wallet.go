package module

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

type wallet struct {
	base
}

func newWallet(deps Deps) Client {
	w := &wallet{base: newBase(KindWallet, deps)}
	w.ops = []entry{
		infoOp(&w.base),
		{
			Operation: Operation{Name: "deposit-address", Mutating: true, Summary: "Derive a fresh peg-in address", Args: []string{"label?"}},
			run:       w.depositAddress,
		},
		{
			Operation: Operation{Name: "withdraw", Mutating: true, Summary: "Peg out to an on-chain address", Args: []string{"address", "amount"}},
			run:       w.withdraw,
		},
	}
	return w
}

// DepositAddress is the result of wallet deposit-address.
type DepositAddress struct {
	Index   uint64 `json:"index"`
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

func (w *wallet) depositAddress(ctx context.Context, args Args) (any, error) {
	label := args.Optional("label", "")

	var out DepositAddress
	err := w.submit(ctx, func(index uint64, child []byte) ([]storage.Write, error) {
		var res struct {
			Address string `json:"address"`
		}
		params := map[string]any{"tweak": hex.EncodeToString(child)}
		if err := w.deps.API.RequestQuorum(ctx, w.method("peg_in_address"), params, &res); err != nil {
			return nil, err
		}
		if res.Address == "" {
			return nil, domain.ErrModule.WithDetails("federation returned no address")
		}

		out = DepositAddress{Index: index, Address: res.Address, Label: label}
		rec, err := w.state.record("addresses", index, addressRecord{Address: res.Address, Label: label, CreatedAt: stamp()})
		if err != nil {
			return nil, err
		}
		return []storage.Write{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Withdrawal is the result of wallet withdraw.
type Withdrawal struct {
	Index     uint64 `json:"index"`
	Address   string `json:"address"`
	AmountSat uint64 `json:"amount_sat"`
	TxID      string `json:"txid"`
}

func (w *wallet) withdraw(ctx context.Context, args Args) (any, error) {
	address, err := args.String("address")
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint64("amount")
	if err != nil {
		return nil, err
	}

	var out Withdrawal
	err = w.submit(ctx, func(index uint64, child []byte) ([]storage.Write, error) {
		var res struct {
			TxID string `json:"txid"`
		}
		params := map[string]any{"address": address, "amount_sat": amount, "nonce": hex.EncodeToString(child)}
		if err := w.deps.API.RequestQuorum(ctx, w.method("withdraw"), params, &res); err != nil {
			return nil, err
		}
		if res.TxID == "" {
			return nil, domain.ErrModule.WithDetails("federation returned no transaction id")
		}

		out = Withdrawal{Index: index, Address: address, AmountSat: amount, TxID: res.TxID}
		rec, err := w.state.record("withdrawals", index, out)
		if err != nil {
			return nil, err
		}
		return []storage.Write{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type addressRecord struct {
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
