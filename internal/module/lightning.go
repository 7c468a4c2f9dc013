package module

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

// lightning serves both Lightning module generations. They differ in
// operation names and guardian endpoints, not in local bookkeeping.
type lightning struct {
	base
}

func newLightningV1(deps Deps) Client {
	l := &lightning{base: newBase(KindLN, deps)}
	l.ops = []entry{
		infoOp(&l.base),
		l.gatewaysOp(),
		{
			Operation: Operation{Name: "invoice", Mutating: true, Summary: "Create an invoice to receive a payment", Args: []string{"amount", "description?"}},
			run:       l.receive,
		},
		{
			Operation: Operation{Name: "pay", Mutating: true, Summary: "Pay an invoice through a gateway", Args: []string{"invoice", "gateway?"}},
			run:       l.send,
		},
	}
	return l
}

func newLightningV2(deps Deps) Client {
	l := &lightning{base: newBase(KindLNv2, deps)}
	l.ops = []entry{
		infoOp(&l.base),
		l.gatewaysOp(),
		{
			Operation: Operation{Name: "send", Mutating: true, Summary: "Pay an invoice through a gateway", Args: []string{"invoice", "gateway?"}},
			run:       l.send,
		},
		{
			Operation: Operation{Name: "receive", Mutating: true, Summary: "Create an invoice to receive a payment", Args: []string{"amount", "description?"}},
			run:       l.receive,
		},
	}
	return l
}

func (l *lightning) gatewaysOp() entry {
	return entry{
		Operation: Operation{Name: "list-gateways", Summary: "List gateways registered with the federation"},
		run:       l.listGateways,
	}
}

func (l *lightning) listGateways(ctx context.Context, _ Args) (any, error) {
	var gateways []json.RawMessage
	if err := l.deps.API.RequestQuorum(ctx, l.method("list_gateways"), nil, &gateways); err != nil {
		return nil, err
	}
	if gateways == nil {
		gateways = []json.RawMessage{}
	}
	return gateways, nil
}

// Invoice is the result of a receive operation.
type Invoice struct {
	Index       uint64 `json:"index"`
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"payment_hash"`
	AmountMsat  uint64 `json:"amount_msat"`
}

func (l *lightning) receive(ctx context.Context, args Args) (any, error) {
	amount, err := args.Uint64("amount")
	if err != nil {
		return nil, err
	}
	description := args.Optional("description", "")

	var out Invoice
	err = l.submit(ctx, func(index uint64, child []byte) ([]storage.Write, error) {
		hash := sha256.Sum256(child)
		var res struct {
			Invoice string `json:"invoice"`
		}
		params := map[string]any{
			"amount_msat":  amount,
			"description":  description,
			"payment_hash": hex.EncodeToString(hash[:]),
		}
		if err := l.deps.API.RequestQuorum(ctx, l.method("create_invoice"), params, &res); err != nil {
			return nil, err
		}
		if res.Invoice == "" {
			return nil, domain.ErrModule.WithDetails("federation returned no invoice")
		}

		out = Invoice{Index: index, Invoice: res.Invoice, PaymentHash: hex.EncodeToString(hash[:]), AmountMsat: amount}
		rec, err := l.state.record("invoices", index, out)
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

// Payment is the result of a send operation.
type Payment struct {
	Index    uint64 `json:"index"`
	Invoice  string `json:"invoice"`
	Gateway  string `json:"gateway,omitempty"`
	Preimage string `json:"preimage"`
	FeeMsat  uint64 `json:"fee_msat"`
}

func (l *lightning) send(ctx context.Context, args Args) (any, error) {
	invoice, err := args.String("invoice")
	if err != nil {
		return nil, err
	}
	gateway := args.Optional("gateway", "")

	var out Payment
	err = l.submit(ctx, func(index uint64, child []byte) ([]storage.Write, error) {
		var res struct {
			Preimage string `json:"preimage"`
			FeeMsat  uint64 `json:"fee_msat"`
		}
		params := map[string]any{"invoice": invoice, "gateway": gateway, "nonce": hex.EncodeToString(child)}
		if err := l.deps.API.RequestQuorum(ctx, l.method("pay"), params, &res); err != nil {
			return nil, err
		}
		if res.Preimage == "" {
			return nil, domain.ErrModule.WithDetails("payment not confirmed")
		}

		out = Payment{Index: index, Invoice: invoice, Gateway: gateway, Preimage: res.Preimage, FeeMsat: res.FeeMsat}
		rec, err := l.state.record("payments", index, out)
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
