package main

import (
	"flag"
	"reflect"
	"testing"
)

func TestSplitModeArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantMode []string
		wantRest []string
	}{
		{
			"equals form",
			[]string{"--mode=order-service", "--port=3000"},
			[]string{"--mode=order-service"},
			[]string{"--port=3000"},
		},
		{
			"space form",
			[]string{"--mode", "order-service", "--port=3000"},
			[]string{"--mode", "order-service"},
			[]string{"--port=3000"},
		},
		{
			"single dash space form",
			[]string{"-mode", "es"},
			[]string{"-mode", "es"},
			nil,
		},
		{
			"mode flag missing",
			[]string{"--port=3000"},
			nil,
			[]string{"--port=3000"},
		},
		{
			"trailing mode without value",
			[]string{"--mode"},
			[]string{"--mode"},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMode, gotRest := splitModeArgs(tt.args)
			if !equalArgs(gotMode, tt.wantMode) {
				t.Errorf("modeArgs = %v, want %v", gotMode, tt.wantMode)
			}
			if !equalArgs(gotRest, tt.wantRest) {
				t.Errorf("rest = %v, want %v", gotRest, tt.wantRest)
			}
		})
	}
}

func TestSpaceSeparatedModeParses(t *testing.T) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	mode := fs.String("mode", "", "")

	modeArgs, rest := splitModeArgs([]string{"--mode", "order-service", "--port=3000"})
	if err := fs.Parse(modeArgs); err != nil {
		t.Fatalf("Parse(%v): %v", modeArgs, err)
	}
	if *mode != "order-service" {
		t.Errorf("mode = %q, want order-service", *mode)
	}
	if !reflect.DeepEqual(rest, []string{"--port=3000"}) {
		t.Errorf("rest = %v, want [--port=3000]", rest)
	}
}

func equalArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
