// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"math/big"
	"testing"
)

func TestRegisterBuiltinsRejectsDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatal(err)
	}
	if err := RegisterBuiltins(r); err == nil {
		t.Fatal("expected the second RegisterBuiltins call to fail on duplicate keys")
	}
}

func TestBigIntSyncFuncs(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatal(err)
	}

	n := big.NewInt(0)
	n.SetString("99999999999999999999999999999999", 10)

	entry := r.MatchFold(n)
	if entry == nil || entry.Key != tagBigInt {
		t.Fatalf("MatchFold(*big.Int) = %v, want BigInt entry", entry)
	}

	payload, err := entry.Sync.Serialize(n)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if payload != n.String() {
		t.Fatalf("Serialize() = %v, want %v", payload, n.String())
	}

	back, err := entry.Sync.Deserialize(payload)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if back.(*big.Int).Cmp(n) != 0 {
		t.Fatalf("Deserialize() = %v, want %v", back, n)
	}
}

func TestBigIntDeserializeRejectsNonString(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatal(err)
	}
	entry, err := r.MatchUnfold(tagBigInt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Sync.Deserialize(float64(5)); err == nil {
		t.Fatal("expected error deserializing a non-string BigInt payload")
	}
}

func TestPromiseImplementsProducerAndHandle(t *testing.T) {
	p := NewPromise()
	p.Resolve("v")

	ev := <-p.Events()
	if ev.Kind != evValue || ev.Value != "v" {
		t.Fatalf("Events() first = %+v, want value v", ev)
	}
	if _, ok := <-p.Events(); ok {
		t.Fatal("expected Events() channel to close after the single event")
	}
}

func TestStreamImplementsProducerAndHandle(t *testing.T) {
	s := NewStream(1)
	s.Send("a")
	s.Close()

	first := <-s.Events()
	if first.Kind != evValue || first.Value != "a" {
		t.Fatalf("first event = %+v, want value a", first)
	}
	second := <-s.Events()
	if second.Kind != evDone {
		t.Fatalf("second event = %+v, want evDone", second)
	}
}
