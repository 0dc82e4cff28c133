package probe

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RGB is a color without alpha.
type RGB [3]int

var (
	rgbRe  = regexp.MustCompile(`^rgb\((\d+),\s*(\d+),\s*(\d+)\)$`)
	rgbaRe = regexp.MustCompile(`^rgba\((\d+),\s*(\d+),\s*(\d+),\s*([0-9.]+)\)$`)
)

// ParseColor parses the color strings produced by getComputedStyle
// ("rgb(r, g, b)" and "rgba(r, g, b, a)"; alpha is ignored). Hex notation
// and "transparent" are accepted as well since static snapshots read
// colors from inline styles.
func ParseColor(s string) (RGB, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if m := rgbRe.FindStringSubmatch(s); m != nil {
		return channels(m[1], m[2], m[3])
	}
	if m := rgbaRe.FindStringSubmatch(s); m != nil {
		return channels(m[1], m[2], m[3])
	}
	if s == "transparent" {
		return RGB{0, 0, 0}, nil
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	return RGB{}, fmt.Errorf("%w: %q", ErrBadColor, s)
}

func channels(r, g, b string) (RGB, error) {
	var out RGB
	for i, v := range []string{r, g, b} {
		n, err := strconv.Atoi(v)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: %v", ErrBadColor, err)
		}
		out[i] = n
	}
	return out, nil
}

func parseHex(h string) (RGB, error) {
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("%w: #%s", ErrBadColor, h)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: #%s", ErrBadColor, h)
	}
	return RGB{int(n >> 16 & 0xff), int(n >> 8 & 0xff), int(n & 0xff)}, nil
}

// Distance returns the Euclidean distance between two colors in RGB space.
func (c RGB) Distance(o RGB) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		diff := float64(c[i] - o[i])
		d += diff * diff
	}
	return math.Sqrt(d)
}
