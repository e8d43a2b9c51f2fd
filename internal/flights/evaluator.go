// Package flights decides which feature flights are on for a request.
//
// A flight is on when the caller exposed it in the context or when a rollout
// rule matches the request's partner and country. A rule marked disabled is a
// kill switch: it turns the flight off even when the caller exposed it.
package flights

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
	pkgstrings "checkout/pkg/platform/strings"
)

const wildcard = "*"

// Rule rolls a flight out to a partner and country population.
type Rule struct {
	Flight    string   `yaml:"flight"`
	Partners  []string `yaml:"partners,omitempty"`
	Countries []string `yaml:"countries,omitempty"`
	// Percent limits the rollout to a stable share of partner/country pairs.
	// Zero means everyone the rule matches.
	Percent  int  `yaml:"percent,omitempty"`
	Disabled bool `yaml:"disabled,omitempty"`
}

func (r Rule) matches(rc models.Context) bool {
	if !matchList(r.Partners, rc.Partner) || !matchList(r.Countries, rc.Country) {
		return false
	}
	if r.Percent <= 0 || r.Percent >= 100 {
		return true
	}
	return bucket(r.Flight, rc.Partner, rc.Country) < uint32(r.Percent)
}

func matchList(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	return slices.Contains(list, wildcard) || slices.Contains(list, value)
}

// bucket maps a flight and population onto [0, 100).
func bucket(flight, partner, country string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(flight + "|" + partner + "|" + country))
	return h.Sum32() % 100
}

// Evaluator implements ports.FlightEvaluator.
type Evaluator struct {
	rules  map[string][]Rule
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an Evaluator from rollout rules.
func New(rules []Rule, opts ...Option) *Evaluator {
	e := &Evaluator{rules: map[string][]Rule{}, logger: slog.Default()}
	for _, r := range rules {
		r.Partners = pkgstrings.DedupeLower(r.Partners)
		r.Countries = pkgstrings.DedupeLower(r.Countries)
		e.rules[r.Flight] = append(e.rules[r.Flight], r)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type rolloutFile struct {
	Rollouts []Rule `yaml:"rollouts"`
}

// Load reads rollout rules from every .yaml file under fsys.
func Load(fsys fs.FS, opts ...Option) (*Evaluator, error) {
	var rules []Rule
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		var f rolloutFile
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTemplateMalformed, fmt.Sprintf("rollout file %s", path))
		}
		for _, r := range f.Rollouts {
			if r.Flight == "" {
				return dErrors.New(dErrors.CodeTemplateMalformed, fmt.Sprintf("rollout file %s: rule without flight", path))
			}
			if r.Percent < 0 || r.Percent > 100 {
				return dErrors.New(dErrors.CodeTemplateMalformed,
					fmt.Sprintf("rollout file %s: flight %s percent %d out of range", path, r.Flight, r.Percent))
			}
		}
		rules = append(rules, f.Rollouts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return New(rules, opts...), nil
}

// IsEnabled reports whether flight is on for rc. It never blocks.
func (e *Evaluator) IsEnabled(ctx context.Context, flight string, rc models.Context) bool {
	enabled := rc.HasFlight(flight)
	for _, r := range e.rules[flight] {
		if !r.matches(rc) {
			continue
		}
		if r.Disabled {
			if enabled {
				e.logger.DebugContext(ctx, "flight suppressed by kill switch",
					"flight", flight,
					"partner", rc.Partner,
					"country", rc.Country,
				)
			}
			return false
		}
		enabled = true
	}
	return enabled
}

// Flights returns the names of every flight with a rollout rule.
func (e *Evaluator) Flights() []string {
	names := make([]string, 0, len(e.rules))
	for name := range e.rules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
