package assertgate

import (
	"fmt"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

// deriveObserved reduces the raw row set to the single comparable value an
// Expected condition is checked against.
func deriveObserved(expType models.ExpectType, rows []map[string]any) any {
	switch expType {
	case models.ExpectRowCount, models.ExpectNoRows:
		return len(rows)
	case models.ExpectScalar:
		if len(rows) == 0 {
			return nil
		}
		for _, v := range rows[0] {
			return v
		}
		return nil
	default:
		return nil
	}
}

// evaluateExpected compares an observed value against exp, returning
// whether it matched. An error return means the comparison itself could
// not be performed (e.g. a non-numeric value under a numeric operator),
// which the caller records as an "error" outcome rather than "failed".
func evaluateExpected(observed any, exp models.Expected) (bool, error) {
	if exp.Type == models.ExpectNoRows {
		n, ok := observed.(int)
		if !ok {
			return false, fmt.Errorf("assertgate: no_rows expects an integer row count")
		}
		return n == 0, nil
	}

	switch exp.Operator {
	case models.OpEq, models.OpNe:
		eq := equalish(observed, exp.Value)
		if exp.Operator == models.OpNe {
			return !eq, nil
		}
		return eq, nil
	default:
		observedF, ok1 := toFloat(observed)
		expectedF, ok2 := toFloat(exp.Value)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("assertgate: operator %q requires numeric values", exp.Operator)
		}
		switch exp.Operator {
		case models.OpGt:
			return observedF > expectedF, nil
		case models.OpGte:
			return observedF >= expectedF, nil
		case models.OpLt:
			return observedF < expectedF, nil
		case models.OpLte:
			return observedF <= expectedF, nil
		case models.OpBetween:
			value2F, ok3 := toFloat(exp.Value2)
			if !ok3 {
				return false, fmt.Errorf("assertgate: operator 'between' requires a numeric value2")
			}
			lo, hi := expectedF, value2F
			if lo > hi {
				lo, hi = hi, lo
			}
			return observedF >= lo && observedF <= hi, nil
		default:
			return false, fmt.Errorf("assertgate: unsupported operator %q", exp.Operator)
		}
	}
}

// equalish compares two values for eq/ne, normalizing through float64 when
// both sides look numeric so a driver-returned int64 matches a JSON-decoded
// float64 of the same magnitude.
func equalish(a, b any) bool {
	if af, ok1 := toFloat(a); ok1 {
		if bf, ok2 := toFloat(b); ok2 {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
