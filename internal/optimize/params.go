package optimize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/simulator"
	"github.com/samber/lo"
)

// setter writes one grid value into a strategy config.
type setter func(c *simulator.Config, v float64)

func intValue(v float64) int { return int(math.Round(v)) }

var setters = map[string]setter{
	"period1_first_entry_distance": func(c *simulator.Config, v float64) { c.Period1.FirstEntryDistance = v },
	"period2_first_entry_distance": func(c *simulator.Config, v float64) { c.Period2.FirstEntryDistance = v },
	"period3_first_entry_distance": func(c *simulator.Config, v float64) { c.Period3.FirstEntryDistance = v },
	"outside_first_entry_distance": func(c *simulator.Config, v float64) { c.OutsideHours.FirstEntryDistance = v },
	"period1_tp":                   func(c *simulator.Config, v float64) { c.Period1.TakeProfit = v },
	"period2_tp":                   func(c *simulator.Config, v float64) { c.Period2.TakeProfit = v },
	"period3_tp":                   func(c *simulator.Config, v float64) { c.Period3.TakeProfit = v },
	"period1_max_orders":           func(c *simulator.Config, v float64) { c.Period1.MaxOrders = intValue(v) },
	"period2_max_orders":           func(c *simulator.Config, v float64) { c.Period2.MaxOrders = intValue(v) },
	"period3_max_orders":           func(c *simulator.Config, v float64) { c.Period3.MaxOrders = intValue(v) },
	"outside_max_orders":           func(c *simulator.Config, v float64) { c.OutsideHours.MaxOrders = intValue(v) },
	"stop_loss":                    func(c *simulator.Config, v float64) { c.StopLoss = v },
	"daily_profit_target":          func(c *simulator.Config, v float64) { c.DailyProfitTarget = v },
	"max_simultaneous_cycles":      func(c *simulator.Config, v float64) { c.MaxSimultaneousCycles = intValue(v) },
	"default_lot_size":             func(c *simulator.Config, v float64) { c.DefaultLotSize = v },
}

// ParameterNames lists the tunable parameters in sorted order.
func ParameterNames() []string {
	names := lo.Keys(setters)
	sort.Strings(names)
	return names
}

// Param is one parameter assignment.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Params is one grid combination, ordered by parameter name.
type Params []Param

func (p Params) String() string {
	parts := lo.Map(p, func(x Param, _ int) string { return fmt.Sprintf("%s=%g", x.Name, x.Value) })
	return strings.Join(parts, " ")
}

// Apply returns a copy of base with p written into it.
func (p Params) Apply(base simulator.Config) (simulator.Config, error) {
	cfg := base
	for _, x := range p {
		set, ok := setters[x.Name]
		if !ok {
			return base, core.WrapError(core.ErrUnknownParameter, fmt.Errorf("%q", x.Name))
		}
		set(&cfg, x.Value)
	}
	return cfg, nil
}

// Grid maps parameter names to the values to sweep.
type Grid map[string][]float64

// Validate rejects unknown parameters and empty value lists.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("parameter grid is empty"))
	}
	for name, values := range g {
		if _, ok := setters[name]; !ok {
			return core.WrapError(core.ErrUnknownParameter,
				fmt.Errorf("%q (known: %s)", name, strings.Join(ParameterNames(), ", ")))
		}
		if len(values) == 0 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parameter %q has no values", name))
		}
	}
	return nil
}

// Size is the number of combinations the grid expands to.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Combinations expands the cartesian product. Parameters are ordered by name
// and the last name varies fastest, so the order is stable across calls.
func (g Grid) Combinations() ([]Params, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	names := lo.Keys(g)
	sort.Strings(names)

	combos := []Params{{}}
	for _, name := range names {
		next := make([]Params, 0, len(combos)*len(g[name]))
		for _, prefix := range combos {
			for _, v := range g[name] {
				combo := make(Params, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, Param{Name: name, Value: v}))
			}
		}
		combos = next
	}
	return combos, nil
}

// ParseParam parses a "name=v1,v2,..." flag value.
func ParseParam(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(list) == "" {
		return "", nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parameter %q: want name=v1,v2", s))
	}
	if _, known := setters[name]; !known {
		return "", nil, core.WrapError(core.ErrUnknownParameter, fmt.Errorf("%q", name))
	}

	var values []float64
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return "", nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parameter %q value %q: %w", name, field, err))
		}
		values = append(values, v)
	}
	return name, values, nil
}
