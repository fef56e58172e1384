package registrant

import (
	"fmt"
	mrand "math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-password/password"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xkilldash9x/regprobe/internal/config"
)

const (
	base36       = "0123456789abcdefghijklmnopqrstuvwxyz"
	randomSuffix = 8
)

var (
	firstNames = []string{"ada", "grace", "alan", "edsger", "barbara", "donald", "margaret", "ken", "radia", "linus", "frances", "dennis", "katherine", "john", "hedy", "tim"}
	lastNames  = []string{"lovelace", "hopper", "turing", "dijkstra", "liskov", "knuth", "hamilton", "thompson", "perlman", "torvalds", "allen", "ritchie", "johnson", "mccarthy", "lamarr", "berners-lee"}
	streets    = []string{"maple", "oak", "cedar", "elm", "pine", "birch", "walnut", "willow", "chestnut", "spruce"}
	suffixes   = []string{"street", "avenue", "road", "lane", "drive", "court"}
	cities     = []string{"springfield", "riverside", "franklin", "greenville", "fairview", "salem", "madison", "georgetown"}
	states     = []string{"CA", "NY", "TX", "WA", "IL", "OR", "CO", "MA", "GA", "AZ"}
)

// Generator produces Registrants. It is safe for concurrent use.
type Generator struct {
	cfg    config.RegistrantConfig
	titler cases.Caser

	mu  sync.Mutex
	rng *mrand.Rand
	now func() time.Time
	// passwords is swapped in tests that need deterministic output.
	passwords func(length, digits int) (string, error)
}

// Option customizes a Generator.
type Option func(*Generator)

// WithSeed fixes the random source.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = mrand.New(mrand.NewSource(seed)) }
}

// WithClock fixes the time source used for usernames.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithPasswordFunc replaces the password generator.
func WithPasswordFunc(fn func(length, digits int) (string, error)) Option {
	return func(g *Generator) { g.passwords = fn }
}

// NewGenerator creates a Generator seeded from the current time.
func NewGenerator(cfg config.RegistrantConfig, opts ...Option) *Generator {
	g := &Generator{
		cfg:       cfg,
		titler:    cases.Title(language.English),
		rng:       mrand.New(mrand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		passwords: generatePassword,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// generatePassword returns a mixed case alphanumeric password; symbols are
// left out because several demo targets reject them.
func generatePassword(length, digits int) (string, error) {
	return password.Generate(length, digits, 0, false, true)
}

// Generate returns a brand new Registrant. The username combines the current
// time with random characters, so collisions are unlikely but possible.
func (g *Generator) Generate() (Registrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pw, err := g.passwords(g.cfg.PasswordLength, g.cfg.PasswordDigits)
	if err != nil {
		return Registrant{}, fmt.Errorf("generate password: %w", err)
	}

	return Registrant{
		FirstName: g.title(g.pick(firstNames)),
		LastName:  g.title(g.pick(lastNames)),
		Street:    fmt.Sprintf("%d %s %s", 100+g.rng.Intn(9900), g.title(g.pick(streets)), g.title(g.pick(suffixes))),
		City:      g.title(g.pick(cities)),
		State:     g.pick(states),
		ZipCode:   fmt.Sprintf("%05d", 10000+g.rng.Intn(89999)),
		Phone:     fmt.Sprintf("555-%03d-%04d", 100+g.rng.Intn(900), g.rng.Intn(10000)),
		SSN:       fmt.Sprintf("%03d-%02d-%04d", 100+g.rng.Intn(565), 1+g.rng.Intn(99), 1+g.rng.Intn(9999)),
		Username:  g.username(),
		Password:  pw,
	}, nil
}

func (g *Generator) username() string {
	var b strings.Builder
	b.WriteString(g.cfg.UsernamePrefix)
	b.WriteString(strconv.FormatInt(g.now().UnixMilli(), 36))
	for i := 0; i < randomSuffix; i++ {
		b.WriteByte(base36[g.rng.Intn(len(base36))])
	}
	return b.String()
}

func (g *Generator) pick(from []string) string {
	return from[g.rng.Intn(len(from))]
}

func (g *Generator) title(s string) string {
	return g.titler.String(s)
}
