package dsl

import (
	"testing"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/utils"
)

func TestEval(t *testing.T) {
	c := core.NewCandidate("p1")
	c.Name = "Running Shoe"
	c.Price = 120
	c.Score = 0.8
	c.Visible = true
	c.Attributes["brand_id"] = "b1"
	c.PutLabel("strategy", utils.Label{Value: "popularity", Source: "strategy"})

	rctx := &core.RecommendContext{
		BlockName: "homepage",
		User:      &core.User{ID: "u1"},
		Type:      "homepage",
		Params:    map[string]any{"max_price": 200.0},
	}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "empty expression matches", expr: "", want: true},
		{name: "price", expr: "item.price < 200.0", want: true},
		{name: "score", expr: "item.relevance_score >= 0.9", want: false},
		{name: "attribute", expr: `item.attributes.brand_id == "b1"`, want: true},
		{name: "has attribute", expr: `has(item.attributes.color)`, want: false},
		{name: "label", expr: `label.strategy == "popularity"`, want: true},
		{name: "context", expr: `rctx.type == "homepage" && rctx.user_id == "u1"`, want: true},
		{name: "context params", expr: `item.price <= rctx.params.max_price`, want: true},
		{name: "syntax error", expr: "item.price <", wantErr: true},
		{name: "non bool", expr: "item.price + 1.0", wantErr: true},
		{name: "missing key", expr: `item.attributes.color == "red"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, c, rctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Eval(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("Eval(%q) = %v, 期望 %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCompileReuse(t *testing.T) {
	p, err := Compile("item.price > 10.0")
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "item.price > 10.0" {
		t.Fatalf("String() = %q", p.String())
	}
	for _, price := range []float64{5, 50} {
		c := core.NewCandidate("x")
		c.Price = price
		ok, err := p.Match(c, nil)
		if err != nil {
			t.Fatal(err)
		}
		if ok != (price > 10) {
			t.Fatalf("price=%v Match=%v", price, ok)
		}
	}
}
