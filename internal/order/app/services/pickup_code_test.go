package services

import (
	"errors"
	"testing"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
)

func testPolicy() config.PickupCode {
	return config.PickupCode{Width: 4, WideWidth: 6, MaxAttempts: 5}
}

func TestGeneratePickupCodeWidth(t *testing.T) {
	code, err := GeneratePickupCode(func(string) bool { return false }, testPolicy())
	if err != nil {
		t.Fatalf("GeneratePickupCode: %v", err)
	}
	if len(code) != 4 {
		t.Errorf("code %q length = %d, want 4", code, len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Errorf("code %q contains non-digit %q", code, r)
		}
	}
}

func TestGeneratePickupCodeWidensOnCollision(t *testing.T) {
	attempts := 0
	// Every 4-digit candidate collides; the wider space is free.
	taken := func(code string) bool {
		attempts++
		return len(code) == 4
	}

	code, err := GeneratePickupCode(taken, testPolicy())
	if err != nil {
		t.Fatalf("GeneratePickupCode: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code %q length = %d, want 6 after widening", code, len(code))
	}
	if attempts != 6 {
		t.Errorf("attempts = %d, want 5 narrow + 1 wide", attempts)
	}
}

func TestGeneratePickupCodeExhaustion(t *testing.T) {
	attempts := 0
	taken := func(string) bool {
		attempts++
		return true
	}

	_, err := GeneratePickupCode(taken, testPolicy())
	if !errors.Is(err, core.ErrPickupCodeExhausted) {
		t.Fatalf("err = %v, want ErrPickupCodeExhausted", err)
	}
	if attempts != 10 {
		t.Errorf("attempts = %d, want bounded at 10", attempts)
	}
}
