package cases

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// maxRefAttempts bounds the retries when a generated ref is already taken.
const maxRefAttempts = 5

var ErrRefExhausted = errors.New("could not allocate a unique case reference")

// RefGenerator builds public case references: <PREFIX>-<YEAR>-<NNNN>, NNNN in 1000..9999.
type RefGenerator struct {
	prefix string
	intn   func(n int) int
}

func NewRefGenerator(prefix string) *RefGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "UCLF"
	}
	return &RefGenerator{prefix: prefix, intn: rand.IntN}
}

// Next returns one candidate ref for year.
func (g *RefGenerator) Next(year int) string {
	return fmt.Sprintf("%s-%d-%d", g.prefix, year, 1000+g.intn(9000))
}

// Pattern matches refs produced by this generator.
func (g *RefGenerator) Pattern() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(g.prefix) + `-\d{4}-\d{4}$`)
}

// Unique draws refs until exists reports a free one.
func (g *RefGenerator) Unique(ctx context.Context, year int, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxRefAttempts; i++ {
		ref := g.Next(year)
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", ErrRefExhausted
}
