package utility

import (
	"fmt"
	"math/rand"
)

// RandomColorHex returns a random #rrggbb color. Components stay in the
// 4..251 range so players never land on pure black or white markers.
func RandomColorHex() string {
	r := rand.Intn(248) + 4
	g := rand.Intn(248) + 4
	b := rand.Intn(248) + 4
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
