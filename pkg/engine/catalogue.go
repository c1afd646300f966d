package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/sysguard/pkg/facts"
	"go.uber.org/zap"
)

var (
	ErrDuplicateKey   = errors.New("report key declared by more than one check")
	ErrDuplicateCheck = errors.New("check id declared more than once")
	ErrNoKeys         = errors.New("check declares no report keys")
)

// Env carries the collaborators a Check may use while evaluating.
type Env struct {
	Facts  facts.Collector
	Logger *zap.Logger
}

// Check is one named rule group of the catalogue.
type Check interface {
	// ID is a stable identifier such as "passwd-complexity".
	ID() string
	// Title is the human row title.
	Title() string
	// Keys lists, in display order, every report key Evaluate populates.
	Keys() []string
	// Evaluate pulls the facts it needs and renders its findings. It must not
	// fail: unavailable facts degrade to the rule's default.
	Evaluate(ctx context.Context, env Env) Fragment
}

// Catalogue is the fixed, ordered list of checks run by one scan.
type Catalogue struct {
	checks []Check
	owner  map[string]string
}

// NewCatalogue validates that ids and report keys are unique across checks.
func NewCatalogue(checks ...Check) (*Catalogue, error) {
	c := &Catalogue{owner: make(map[string]string)}
	ids := make(map[string]bool, len(checks))
	for _, chk := range checks {
		if ids[chk.ID()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCheck, chk.ID())
		}
		ids[chk.ID()] = true

		keys := chk.Keys()
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoKeys, chk.ID())
		}
		for _, k := range keys {
			if prev, ok := c.owner[k]; ok {
				return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateKey, k, prev, chk.ID())
			}
			c.owner[k] = chk.ID()
		}
		c.checks = append(c.checks, chk)
	}
	return c, nil
}

// MustCatalogue is NewCatalogue for statically defined catalogues; a
// duplicate key there is a programming error.
func MustCatalogue(checks ...Check) *Catalogue {
	c, err := NewCatalogue(checks...)
	if err != nil {
		panic(err)
	}
	return c
}

// Checks returns the checks in declared order.
func (c *Catalogue) Checks() []Check {
	return append([]Check(nil), c.checks...)
}

// Lookup finds a check by id.
func (c *Catalogue) Lookup(id string) (Check, bool) {
	for _, chk := range c.checks {
		if chk.ID() == id {
			return chk, true
		}
	}
	return nil, false
}

// Owner returns the id of the check that declares key.
func (c *Catalogue) Owner(key string) (string, bool) {
	id, ok := c.owner[key]
	return id, ok
}

// Keys returns every declared key in catalogue order.
func (c *Catalogue) Keys() []string {
	keys := make([]string, 0, len(c.owner))
	for _, chk := range c.checks {
		keys = append(keys, chk.Keys()...)
	}
	return keys
}
