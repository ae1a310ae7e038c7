// Copyright (c) 2025 BVK Chaitanya

package match

import (
	"testing"

	"github.com/bvk/buybot/gobs"
	"github.com/shopspring/decimal"
)

func testOrder(id string, target, amount float64) *gobs.Order {
	return &gobs.Order{
		ID:          id,
		TargetPrice: decimal.NewFromFloat(target),
		Amount:      decimal.NewFromFloat(amount),
		Status:      gobs.OrderPending,
	}
}

func TestFindExecutable(t *testing.T) {
	orders := []*gobs.Order{
		testOrder("a", 3.20, 100),
		testOrder("b", 3.10, 100),
		testOrder("c", 3.00, 100),
	}

	// A price above every target matches nothing.
	if cs := FindExecutable(orders, decimal.NewFromFloat(3.25)); len(cs) != 0 {
		t.Fatalf("wanted 0 candidates, got %d", len(cs))
	}

	// A price between targets matches only the ones at or above it.
	cs := FindExecutable(orders, decimal.NewFromFloat(3.05))
	if len(cs) != 2 {
		t.Fatalf("wanted 2 candidates, got %d", len(cs))
	}

	// Candidates come back sorted ascending by target price.
	cs = FindExecutable(orders, decimal.NewFromFloat(3.00))
	if len(cs) != 3 {
		t.Fatalf("wanted 3 candidates, got %d", len(cs))
	}
	for i, id := range []string{"c", "b", "a"} {
		if cs[i].ID != id {
			t.Fatalf("wanted %q at position %d, got %q", id, i, cs[i].ID)
		}
	}

	// An exact target match is executable.
	if cs := FindExecutable(orders, decimal.NewFromFloat(3.20)); len(cs) != 1 || cs[0].ID != "a" {
		t.Fatalf("wanted only order a, got %d candidates", len(cs))
	}
}

func TestFindExecutableSkipsExecuted(t *testing.T) {
	done := testOrder("done", 3.00, 100)
	done.Status = gobs.OrderExecuted

	orders := []*gobs.Order{done, testOrder("open", 3.00, 100)}
	cs := FindExecutable(orders, decimal.NewFromFloat(2.90))
	if len(cs) != 1 || cs[0].ID != "open" {
		t.Fatalf("wanted only the pending order, got %d candidates", len(cs))
	}
}

func TestSelectBatchAllFit(t *testing.T) {
	candidates := []*gobs.Order{
		testOrder("c", 3.00, 100),
		testOrder("b", 3.10, 100),
		testOrder("a", 3.20, 100),
	}

	batch := SelectBatch(candidates, decimal.NewFromInt(300), decimal.Zero)
	if len(batch.Selected) != 3 {
		t.Fatalf("wanted 3 selected, got %d", len(batch.Selected))
	}
	if want := decimal.NewFromInt(300); !batch.TotalAmount.Equal(want) {
		t.Fatalf("wanted total %s, got %s", want, batch.TotalAmount)
	}
}

func TestSelectBatchSkipsOverflow(t *testing.T) {
	candidates := []*gobs.Order{
		testOrder("c", 3.00, 100),
		testOrder("b", 3.10, 100),
		testOrder("a", 3.20, 100),
	}

	// Only $250 remains; the third candidate would overflow and is skipped.
	batch := SelectBatch(candidates, decimal.NewFromInt(250), decimal.Zero)
	if len(batch.Selected) != 2 {
		t.Fatalf("wanted 2 selected, got %d", len(batch.Selected))
	}
	for i, id := range []string{"c", "b"} {
		if batch.Selected[i].ID != id {
			t.Fatalf("wanted %q at position %d, got %q", id, i, batch.Selected[i].ID)
		}
	}
	if want := decimal.NewFromInt(200); !batch.TotalAmount.Equal(want) {
		t.Fatalf("wanted total %s, got %s", want, batch.TotalAmount)
	}
}

func TestSelectBatchGreedyFillsGaps(t *testing.T) {
	candidates := []*gobs.Order{
		testOrder("c", 3.00, 200),
		testOrder("b", 3.10, 150),
		testOrder("a", 3.20, 50),
	}

	// The greedy pass skips the middle candidate but still accepts the last
	// one that fits.
	batch := SelectBatch(candidates, decimal.NewFromInt(250), decimal.Zero)
	if len(batch.Selected) != 2 {
		t.Fatalf("wanted 2 selected, got %d", len(batch.Selected))
	}
	for i, id := range []string{"c", "a"} {
		if batch.Selected[i].ID != id {
			t.Fatalf("wanted %q at position %d, got %q", id, i, batch.Selected[i].ID)
		}
	}
	if want := decimal.NewFromInt(250); !batch.TotalAmount.Equal(want) {
		t.Fatalf("wanted total %s, got %s", want, batch.TotalAmount)
	}
}

func TestSelectBatchNoBudget(t *testing.T) {
	candidates := []*gobs.Order{testOrder("a", 3.00, 100)}

	// Spending at or past the budget selects nothing.
	batch := SelectBatch(candidates, decimal.NewFromInt(100), decimal.NewFromInt(100))
	if len(batch.Selected) != 0 {
		t.Fatalf("wanted empty batch, got %d selected", len(batch.Selected))
	}
	if !batch.TotalAmount.IsZero() {
		t.Fatalf("wanted zero total, got %s", batch.TotalAmount)
	}

	batch = SelectBatch(candidates, decimal.NewFromInt(100), decimal.NewFromInt(150))
	if len(batch.Selected) != 0 {
		t.Fatalf("wanted empty batch, got %d selected", len(batch.Selected))
	}
}
