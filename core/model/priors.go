package model

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/huangsam/coronacaster/schema"
)

// ParseKey maps a model key to its family and polynomial order.
// "polyN" selects a polynomial of order N, "exp" the exponential model and
// any key containing "logis", "scurve" or "sigmoid" the logistic model.
func ParseKey(key string) (schema.ModelFamily, int, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasPrefix(k, "poly"):
		order, err := strconv.Atoi(k[len("poly"):])
		if err != nil {
			return "", 0, schema.Configf("model key %q needs an integer order after poly", key)
		}
		if order < 0 || order > MaxPolyOrder {
			return "", 0, schema.Configf("model key %q: order must be within 0..%d", key, MaxPolyOrder)
		}
		return schema.PolyFamily, order, nil
	case k == "exp":
		return schema.ExpFamily, 0, nil
	case strings.Contains(k, "logis"), strings.Contains(k, "scurve"), strings.Contains(k, "sigmoid"):
		return schema.LogisticFamily, 0, nil
	default:
		return "", 0, schema.Configf("unknown model key %q (want polyN, exp, logis, scurve or sigmoid)", key)
	}
}

// ApplyOverrides returns a copy of base with the named priors replaced.
// Parameters take [mean, scale]; the noise parameter takes [scale].
func ApplyOverrides(base schema.PriorSet, overrides schema.PriorOverrides) (schema.PriorSet, error) {
	out := base
	out.Params = slices.Clone(base.Params)

	// Sorted keys keep error messages deterministic.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, name := range keys {
		vals := overrides[name]
		if name == schema.SigmaName {
			if len(vals) != 1 {
				return schema.PriorSet{}, schema.Configf("prior %q takes exactly one value [scale], got %d", name, len(vals))
			}
			if !validScale(vals[0]) {
				return schema.PriorSet{}, schema.Configf("prior %q needs a positive scale, got %v", name, vals[0])
			}
			out.Sigma.Scale = vals[0]
			continue
		}

		idx := slices.IndexFunc(out.Params, func(p schema.ParameterPrior) bool { return p.Name == name })
		if idx < 0 {
			return schema.PriorSet{}, schema.Configf("prior %q is not a parameter of the %s model (have %s)",
				name, familyLabel(base), strings.Join(base.Names(), ", "))
		}
		if len(vals) != 2 {
			return schema.PriorSet{}, schema.Configf("prior %q takes exactly two values [mean, scale], got %d", name, len(vals))
		}
		if math.IsNaN(vals[0]) || math.IsInf(vals[0], 0) {
			return schema.PriorSet{}, schema.Configf("prior %q needs a finite mean, got %v", name, vals[0])
		}
		if !validScale(vals[1]) {
			return schema.PriorSet{}, schema.Configf("prior %q needs a positive scale, got %v", name, vals[1])
		}
		out.Params[idx].Mean = vals[0]
		out.Params[idx].Scale = vals[1]
	}
	return out, nil
}

func validScale(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func familyLabel(ps schema.PriorSet) string {
	if ps.Family == schema.PolyFamily {
		return "poly" + strconv.Itoa(ps.Order)
	}
	return string(ps.Family)
}
