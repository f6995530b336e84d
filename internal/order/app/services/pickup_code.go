package services

import (
	"fmt"
	"math/rand/v2"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
)

// GeneratePickupCode produces a short numeric code for counter pickup.
// Codes are not globally unique; they only need to avoid the vendor's
// currently active orders, which the taken predicate reports. After
// MaxAttempts collisions at the configured width the generator widens
// the code space once and retries before giving up.
func GeneratePickupCode(taken func(code string) bool, p config.PickupCode) (string, error) {
	for _, width := range []int{p.Width, p.WideWidth} {
		for attempt := 0; attempt < p.MaxAttempts; attempt++ {
			code := randomCode(width)
			if !taken(code) {
				return code, nil
			}
		}
	}
	return "", core.ErrPickupCodeExhausted
}

func randomCode(width int) string {
	max := 1
	for i := 0; i < width; i++ {
		max *= 10
	}
	return fmt.Sprintf("%0*d", width, rand.IntN(max))
}
