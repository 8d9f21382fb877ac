// Package dice parses and rolls dice expressions such as "1d6", "2d10+3",
// "d%" or "3d6-1d4". Randomness comes from a pluggable Source so that rolls
// can be seeded for tests or drawn from an external entropy service.
package dice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	MaxDice  = 1000    // Upper bound on the number of dice in one term
	MaxSides = 1000000 // Upper bound on the sides of one die
)

// Source yields uniform integers in [0, n). n is always positive.
type Source interface {
	IntN(n int) int
}

// term is one signed component of an expression: either count dice of
// sides faces, or a constant when sides is zero.
type term struct {
	sign     int
	count    int
	sides    int
	constant int
}

// Expr is a parsed dice expression.
type Expr struct {
	formula string
	terms   []term
}

// SyntaxError reports a malformed expression and where parsing stopped.
type SyntaxError struct {
	Formula string
	Offset  int
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("dice: %s at offset %d in %q", e.Msg, e.Offset, e.Formula)
}

// Parse compiles a dice expression.
func Parse(formula string) (*Expr, error) {
	p := parser{src: formula}
	terms, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Expr{formula: formula, terms: terms}, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(formula string) *Expr {
	e, err := Parse(formula)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source formula.
func (e *Expr) String() string {
	return e.formula
}

// Roll evaluates the expression once.
func (e *Expr) Roll(src Source) int {
	total := 0
	for _, t := range e.terms {
		if t.sides == 0 {
			total += t.sign * t.constant
			continue
		}
		sum := 0
		for i := 0; i < t.count; i++ {
			sum += src.IntN(t.sides) + 1
		}
		total += t.sign * sum
	}
	return total
}

// Min returns the smallest total the expression can produce.
func (e *Expr) Min() int {
	total := 0
	for _, t := range e.terms {
		lo, hi := t.bounds()
		if t.sign > 0 {
			total += lo
		} else {
			total -= hi
		}
	}
	return total
}

// Max returns the largest total the expression can produce.
func (e *Expr) Max() int {
	total := 0
	for _, t := range e.terms {
		lo, hi := t.bounds()
		if t.sign > 0 {
			total += hi
		} else {
			total -= lo
		}
	}
	return total
}

func (t term) bounds() (lo, hi int) {
	if t.sides == 0 {
		return t.constant, t.constant
	}
	return t.count, t.count * t.sides
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, a ...any) error {
	return &SyntaxError{Formula: p.src, Offset: p.pos, Msg: fmt.Sprintf(format, a...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// number reads a run of decimal digits. ok is false when none are present.
func (p *parser) number() (n int, ok bool, err error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		n = n*10 + int(p.src[p.pos]-'0')
		if n > MaxSides {
			return 0, false, p.errorf("number too large")
		}
		p.pos++
	}
	return n, p.pos > start, nil
}

func (p *parser) parse() ([]term, error) {
	if strings.TrimSpace(p.src) == "" {
		return nil, p.errorf("empty expression")
	}

	var terms []term
	sign := 1
	p.skipSpace()
	if c := p.peek(); c == '-' || c == '+' {
		if c == '-' {
			sign = -1
		}
		p.pos++
	}

	for {
		p.skipSpace()
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		t.sign = sign
		terms = append(terms, t)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return terms, nil
		}
		switch p.peek() {
		case '+':
			sign = 1
		case '-':
			sign = -1
		default:
			return nil, p.errorf("unexpected %q", p.peek())
		}
		p.pos++
	}
}

func (p *parser) term() (term, error) {
	count, hasCount, err := p.number()
	if err != nil {
		return term{}, err
	}

	if c := p.peek(); c != 'd' && c != 'D' {
		if !hasCount {
			return term{}, p.errorf("expected number or die")
		}
		return term{constant: count}, nil
	}
	p.pos++

	if !hasCount {
		count = 1
	}
	if count < 1 {
		return term{}, p.errorf("dice count must be positive")
	}
	if count > MaxDice {
		return term{}, p.errorf("at most %d dice per term", MaxDice)
	}

	if p.peek() == '%' {
		p.pos++
		return term{count: count, sides: 100}, nil
	}
	sides, ok, err := p.number()
	if err != nil {
		return term{}, err
	}
	if !ok {
		return term{}, p.errorf("expected die size")
	}
	if sides < 1 {
		return term{}, p.errorf("die must have at least one side")
	}
	return term{count: count, sides: sides}, nil
}

// Roller evaluates formulas against a Source, caching parsed expressions.
// It is safe for concurrent use.
type Roller struct {
	mu    sync.Mutex
	src   Source
	cache map[string]*Expr
}

// NewRoller creates a roller drawing from src.
func NewRoller(src Source) *Roller {
	return &Roller{src: src, cache: make(map[string]*Expr)}
}

// Roll evaluates formula once and returns the total.
func (r *Roller) Roll(ctx context.Context, formula string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expr, ok := r.cache[formula]
	if !ok {
		var err error
		expr, err = Parse(formula)
		if err != nil {
			return 0, err
		}
		r.cache[formula] = expr
	}
	return expr.Roll(r.src), nil
}

// Seeded is a deterministic Source backed by a PCG generator.
type Seeded struct {
	r *rand.Rand
}

// NewSeeded creates a deterministic source from seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{r: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// IntN returns a uniform integer in [0, n).
func (s *Seeded) IntN(n int) int {
	return s.r.IntN(n)
}
