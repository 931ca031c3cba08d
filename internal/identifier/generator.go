package identifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Strategy names accepted by the generator.
const (
	StrategyName       = "name-based"
	StrategyYear       = "year-based"
	StrategySequential = "sequential"
	StrategyHybrid     = "hybrid"
	StrategyRoll       = "roll-based"
)

// primaryStrategies are the ones exercised by GenerateAll. Roll-based is
// excluded because it depends on caller-supplied input.
var primaryStrategies = []string{StrategyName, StrategyYear, StrategySequential, StrategyHybrid}

var (
	ErrRollRequired    = errors.New("roll number required for roll-based strategy")
	ErrUnknownStrategy = errors.New("unknown identifier strategy")
)

// Store is the uniqueness oracle. Existence checks are scoped to
// (identifier, university, role=student).
type Store interface {
	CountStudents(ctx context.Context, university string) (int, error)
	CountMatching(ctx context.Context, university, pattern string) (int, error)
	Exists(ctx context.Context, id, university string) (bool, error)
}

// Input carries everything a strategy needs. Year defaults to the current
// year when zero.
type Input struct {
	Name       string
	University string
	RollNumber string
	Year       int
	Strategy   string
}

// Result is a generated identifier. Unique=false marks the degraded
// timestamp fallback; callers must handle it explicitly rather than trust
// the id.
type Result struct {
	ID       string `json:"id"`
	Strategy string `json:"strategy"`
	Unique   bool   `json:"unique"`
}

// Generator produces student identifiers unique within a university scope.
type Generator struct {
	store       Store
	now         func() time.Time
	randInt     func(n int) int
	maxAttempts int
}

// New creates a generator with the production clock and RNG.
func New(store Store) *Generator {
	return &Generator{
		store:       store,
		now:         time.Now,
		randInt:     rand.Intn,
		maxAttempts: 10,
	}
}

// Generate attempts the chosen strategy, re-checking uniqueness with a
// random two-digit suffix on collision. A failed uniqueness query counts as
// "not unique" so a transient read error can never hand out a duplicate.
// After maxAttempts the timestamp fallback is returned with Unique=false.
func (g *Generator) Generate(ctx context.Context, in Input) (Result, error) {
	strategy := in.Strategy
	if strategy == "" {
		strategy = StrategyName
	}
	switch strategy {
	case StrategyName, StrategyYear, StrategySequential, StrategyHybrid:
	case StrategyRoll:
		if digits(in.RollNumber) == "" {
			return Result{}, ErrRollRequired
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		id, err := g.build(ctx, strategy, in)
		if err != nil {
			// Transient store error: move to the next attempt, not abort.
			continue
		}
		if g.isUnique(ctx, id, in.University) {
			return Result{ID: id, Strategy: strategy, Unique: true}, nil
		}
		alt := id[:len(id)-2] + fmt.Sprintf("%02d", g.randInt(100))
		if g.isUnique(ctx, alt, in.University) {
			return Result{ID: alt, Strategy: strategy, Unique: true}, nil
		}
	}

	return Result{ID: g.fallback(), Strategy: strategy, Unique: false}, nil
}

// GenerateAll runs each primary strategy once and returns every result so
// the caller can compare candidates side by side.
func (g *Generator) GenerateAll(ctx context.Context, in Input) ([]Result, error) {
	results := make([]Result, 0, len(primaryStrategies))
	for _, strategy := range primaryStrategies {
		id, err := g.build(ctx, strategy, in)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", strategy, err)
		}
		results = append(results, Result{
			ID:       id,
			Strategy: strategy,
			Unique:   g.isUnique(ctx, id, in.University),
		})
	}
	return results, nil
}

func (g *Generator) build(ctx context.Context, strategy string, in Input) (string, error) {
	year := in.Year
	if year == 0 {
		year = g.now().Year()
	}
	yy := year % 100

	switch strategy {
	case StrategyName:
		count, err := g.store.CountStudents(ctx, in.University)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s%03d", namePrefix(in.Name, 3), count+1), nil

	case StrategyYear:
		prefix := namePrefix(in.Name, 2)
		count, err := g.store.CountMatching(ctx, in.University, fmt.Sprintf("%%%02d%%", yy))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%02d%s%03d", yy, prefix, count+1), nil

	case StrategySequential:
		count, err := g.store.CountStudents(ctx, in.University)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s%04d", namePrefix(in.University, 3), count+1), nil

	case StrategyHybrid:
		prefix := namePrefix(in.Name, 2)
		count, err := g.store.CountMatching(ctx, in.University, fmt.Sprintf("%02d%s%%", yy, prefix))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%02d%s%02d", yy, prefix, count+1), nil

	case StrategyRoll:
		tail := digits(in.RollNumber)
		if tail == "" {
			return "", ErrRollRequired
		}
		if len(tail) > 4 {
			tail = tail[len(tail)-4:]
		}
		for len(tail) < 4 {
			tail = "0" + tail
		}
		return namePrefix(in.Name, 2) + tail, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// isUnique treats a failed existence query as a collision so transient read
// errors force a retry instead of risking a duplicate id.
func (g *Generator) isUnique(ctx context.Context, id, university string) bool {
	exists, err := g.store.Exists(ctx, id, university)
	if err != nil {
		return false
	}
	return !exists
}

func (g *Generator) fallback() string {
	return fmt.Sprintf("STU%06d", g.now().Unix()%1000000)
}

// namePrefix builds a fixed-width alphabetic prefix. Multi-word names fill
// the width with leading letters of the first word plus one initial per
// remaining word; single words are truncated. Short output is right-padded
// with X.
func namePrefix(name string, n int) string {
	var cleaned strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || r == ' ' {
			cleaned.WriteRune(r)
		}
	}
	words := strings.Fields(cleaned.String())

	var out string
	if len(words) > 1 && n >= len(words) {
		lead := n - (len(words) - 1)
		if lead > len(words[0]) {
			lead = len(words[0])
		}
		out = words[0][:lead]
		for _, w := range words[1:] {
			out += w[:1]
		}
	} else {
		out = strings.Join(words, "")
	}
	if len(out) > n {
		out = out[:n]
	}
	for len(out) < n {
		out += "X"
	}
	return out
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
