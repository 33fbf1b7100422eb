package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/config"
)

func newSession(t *testing.T) *session {
	t.Helper()
	ctx := context.Background()
	s, err := open(ctx, config.Default(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func TestDemo_Math(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	tests := []struct {
		want    any
		name    string
		fn      string
		args    []any
		wantErr bool
	}{
		{name: "add", fn: "add", args: []any{2.0, 3.0}, want: 5.0},
		{name: "mul", fn: "mul", args: []any{4.0, 2.5}, want: 10.0},
		{name: "sqrt", fn: "sqrt", args: []any{81.0}, want: 9.0},
		{name: "negative sqrt", fn: "sqrt", args: []any{-1.0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.iso.Call(ctx, "math", tt.fn, tt.args...)
			if tt.wantErr {
				var exc *bridge.Exception
				if !stderrors.As(err, &exc) {
					t.Errorf("got %v, want exception", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.fn, got, tt.want)
			}
		})
	}
}

func TestDemo_Xor(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	got, err := s.iso.Call(ctx, "bytes", "xor", "AB", 1)
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := got.([]byte); !ok || !bytes.Equal(b, []byte{'A' ^ 1, 'B' ^ 1}) {
		t.Errorf("xor = %#v", got)
	}

	_, err = s.iso.Call(ctx, "bytes", "xor", "AB", 300)
	var exc *bridge.Exception
	if !stderrors.As(err, &exc) || exc.Name != "RangeError" {
		t.Errorf("got %v, want RangeError", err)
	}
	if st := s.iso.Stats(); st.Roots != 0 {
		t.Errorf("roots = %d after calls", st.Roots)
	}
}

func TestDemo_Digest(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	id, err := s.iso.Call(ctx, "jobs", "digest", "abc")
	if err != nil {
		t.Fatal(err)
	}
	bad, err := s.iso.Call(ctx, "jobs", "digest", "abc", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.iso.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256([]byte("abc"))
	got, err := s.iso.Call(ctx, "jobs", "result", id)
	if err != nil {
		t.Fatal(err)
	}
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest = %v, want %s", got, want)
	}

	v, ok := s.results.Get(bad.(string))
	if !ok || v != "error: Error: rounds must be positive, got 0" {
		t.Errorf("failed digest = %q", v)
	}

	missing, err := s.iso.Call(ctx, "jobs", "result", "nope")
	if err != nil || missing != nil {
		t.Errorf("unknown job = %v, %v", missing, err)
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		want any
		in   string
	}{
		{true, "true"},
		{false, "false"},
		{nil, "null"},
		{2.5, "2.5"},
		{-3.0, "-3"},
		{"hello", "hello"},
	}
	for _, tt := range tests {
		if got := parseArg(tt.in); got != tt.want {
			t.Errorf("parseArg(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
