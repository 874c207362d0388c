package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/catalogrec/core"
)

type funcNode struct {
	name string
	fn   func([]*core.Candidate) ([]*core.Candidate, error)
}

func (n *funcNode) Name() string { return n.name }
func (n *funcNode) Kind() Kind   { return KindFilter }
func (n *funcNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Candidate) ([]*core.Candidate, error) {
	return n.fn(items)
}

func TestPipeline_Run(t *testing.T) {
	dropFirst := &funcNode{name: "drop_first", fn: func(items []*core.Candidate) ([]*core.Candidate, error) {
		return items[1:], nil
	}}
	p := (&Pipeline{}).Append(dropFirst, nil, dropFirst)
	if len(p.Nodes) != 2 {
		t.Fatalf("nil 节点应被忽略，Nodes=%d", len(p.Nodes))
	}

	items := []*core.Candidate{core.NewCandidate("a"), core.NewCandidate("b"), core.NewCandidate("c")}
	got, err := p.Run(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("Run = %+v", got)
	}
}

func TestPipeline_RunError(t *testing.T) {
	boom := errors.New("boom")
	p := (&Pipeline{}).Append(&funcNode{name: "bad", fn: func([]*core.Candidate) ([]*core.Candidate, error) {
		return nil, boom
	}})
	_, err := p.Run(context.Background(), nil, nil)
	if !errors.Is(err, boom) || err.Error() != "bad: boom" {
		t.Fatalf("Run 错误 = %v", err)
	}
}
