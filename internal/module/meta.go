package module

import (
	"context"
	"encoding/json"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

type meta struct {
	base
}

func newMeta(deps Deps) Client {
	m := &meta{base: newBase(KindMeta, deps)}
	m.ops = []entry{
		infoOp(&m.base),
		{
			Operation: Operation{Name: "get", Summary: "Read the consensus value of a key", Args: []string{"key"}},
			run:       m.get,
		},
		{
			Operation: Operation{Name: "submit", Mutating: true, Summary: "Propose a value for a key", Args: []string{"key", "value"}},
			run:       m.submit,
		},
	}
	return m
}

// MetaValue is the result of meta get.
type MetaValue struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (m *meta) get(ctx context.Context, args Args) (any, error) {
	key, err := args.String("key")
	if err != nil {
		return nil, err
	}
	var value json.RawMessage
	if err := m.deps.API.RequestQuorum(ctx, m.method("get"), map[string]any{"key": key}, &value); err != nil {
		return nil, err
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return &MetaValue{Key: key, Value: value}, nil
}

// MetaSubmission is the result of meta submit.
type MetaSubmission struct {
	Index    uint64 `json:"index"`
	Key      string `json:"key"`
	Accepted bool   `json:"accepted"`
}

func (m *meta) submit(ctx context.Context, args Args) (any, error) {
	key, err := args.String("key")
	if err != nil {
		return nil, err
	}
	value, err := args.String("value")
	if err != nil {
		return nil, err
	}

	var out MetaSubmission
	err = m.base.submit(ctx, func(index uint64, _ []byte) ([]storage.Write, error) {
		var res struct {
			Accepted bool `json:"accepted"`
		}
		params := map[string]any{"key": key, "value": value}
		if err := m.deps.API.RequestQuorum(ctx, m.method("submit"), params, &res); err != nil {
			return nil, err
		}
		if !res.Accepted {
			return nil, domain.ErrModule.WithDetailsf("federation rejected value for %q", key)
		}

		out = MetaSubmission{Index: index, Key: key, Accepted: true}
		rec, err := m.state.record("submissions", index, map[string]string{"key": key, "value": value})
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
