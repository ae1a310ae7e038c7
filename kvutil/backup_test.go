// Copyright (c) 2025 BVK Chaitanya

package kvutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bvk/buybot/gobs"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := kvmemdb.New()

	samples := map[string]*gobs.PriceSample{
		"/a": {Price: decimal.NewFromFloat(3.10), At: time.Now().Truncate(time.Second)},
		"/b": {Price: decimal.NewFromFloat(3.20), At: time.Now().Truncate(time.Second)},
	}
	for key, sample := range samples {
		if err := SetDB(ctx, src, key, sample); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	export := func(ctx context.Context, r kv.Reader) error {
		return Export(ctx, r, &buf)
	}
	if err := kv.WithReader(ctx, src, export); err != nil {
		t.Fatal(err)
	}

	dst := kvmemdb.New()
	restore := func(ctx context.Context, rw kv.ReadWriter) error {
		return Import(ctx, &buf, rw)
	}
	if err := kv.WithReadWriter(ctx, dst, restore); err != nil {
		t.Fatal(err)
	}

	for key, want := range samples {
		got, err := GetDB[gobs.PriceSample](ctx, dst, key)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Price.Equal(want.Price) || !got.At.Equal(want.At) {
			t.Fatalf("wanted %v at %q, got %v", want, key, got)
		}
	}
}
