// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"errors"
	"testing"
)

func TestRegistryRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		entry   *Entry
		wantErr bool
	}{
		{
			name:    "missing key",
			entry:   &Entry{Test: func(interface{}) bool { return false }},
			wantErr: true,
		},
		{
			name: "sync missing funcs",
			entry: &Entry{
				Key:  "Missing",
				Kind: KindSync,
				Test: func(interface{}) bool { return false },
			},
			wantErr: true,
		},
		{
			name: "async missing funcs",
			entry: &Entry{
				Key:  "MissingAsync",
				Kind: KindAsync,
				Test: func(interface{}) bool { return false },
			},
			wantErr: true,
		},
		{
			name: "valid sync",
			entry: &Entry{
				Key:  "Valid",
				Kind: KindSync,
				Test: func(interface{}) bool { return false },
				Sync: &SyncFuncs{
					Serialize:   func(v interface{}) (interface{}, error) { return v, nil },
					Deserialize: func(v interface{}) (interface{}, error) { return v, nil },
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.entry)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryDuplicateKey(t *testing.T) {
	r := NewRegistry()
	entry := &Entry{
		Key:  "Dup",
		Kind: KindSync,
		Test: func(interface{}) bool { return false },
		Sync: &SyncFuncs{
			Serialize:   func(v interface{}) (interface{}, error) { return v, nil },
			Deserialize: func(v interface{}) (interface{}, error) { return v, nil },
		},
	}
	if err := r.Register(entry); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(entry); err == nil {
		t.Fatal("second Register() with same key should have failed")
	}
}

func TestRegistryMatchFoldFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	var calls []string

	mk := func(key string, match bool) *Entry {
		return &Entry{
			Key:  key,
			Kind: KindSync,
			Test: func(v interface{}) bool { calls = append(calls, key); return match },
			Sync: &SyncFuncs{
				Serialize:   func(v interface{}) (interface{}, error) { return v, nil },
				Deserialize: func(v interface{}) (interface{}, error) { return v, nil },
			},
		}
	}

	if err := r.Register(mk("First", false)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(mk("Second", true)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(mk("Third", true)); err != nil {
		t.Fatal(err)
	}

	entry := r.MatchFold("anything")
	if entry == nil || entry.Key != "Second" {
		t.Fatalf("MatchFold() = %v, want entry Second", entry)
	}
	if len(calls) != 2 {
		t.Fatalf("expected matching to stop at first match, tested %v", calls)
	}
}

func TestRegistryMatchUnfoldUnknownKey(t *testing.T) {
	r := NewRegistry()
	_, err := r.MatchUnfold("DoesNotExist")
	if err == nil {
		t.Fatal("expected error for unknown tag key")
	}
	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if tErr.Kind != ErrProtocolError {
		t.Fatalf("Kind = %v, want ErrProtocolError", tErr.Kind)
	}
}

func TestRegistryGuards(t *testing.T) {
	r := NewRegistry()
	r.Guard(func(v interface{}) error {
		if v == "forbidden" {
			return errors.New("value is forbidden")
		}
		return nil
	})

	if err := r.applyGuards("ok"); err != nil {
		t.Fatalf("applyGuards(ok) error = %v", err)
	}

	err := r.applyGuards("forbidden")
	if err == nil {
		t.Fatal("expected guard failure")
	}
	var tErr *Error
	if !errors.As(err, &tErr) || tErr.Kind != ErrGuardFailed {
		t.Fatalf("expected ErrGuardFailed, got %v", err)
	}
}
