package harness

import (
	"fmt"
	"strings"
)

// CheckAssertions validates every assertion of a scenario against the
// compiled result. All assertions are checked; the first failure is
// returned with enough context to locate it.
func CheckAssertions(s *Scenario, result *Result) error {
	for i, a := range s.Assertions {
		if err := checkOne(a, result); err != nil {
			return fmt.Errorf("scenario %q assertion %d (%s): %w", s.Name, i+1, a.Type, err)
		}
	}
	return nil
}

func checkOne(a Assertion, result *Result) error {
	switch a.Type {
	case AssertSQLContains:
		if !strings.Contains(result.SQL, a.Value) {
			return fmt.Errorf("compiled SQL does not contain %q:\n%s", a.Value, result.SQL)
		}
	case AssertSQLNotContains:
		if strings.Contains(result.SQL, a.Value) {
			return fmt.Errorf("compiled SQL must not contain %q:\n%s", a.Value, result.SQL)
		}
	case AssertSQLCount:
		if got := strings.Count(result.SQL, a.Value); got != a.Count {
			return fmt.Errorf("compiled SQL contains %q %d times, want %d:\n%s", a.Value, got, a.Count, result.SQL)
		}
	case AssertColumns:
		labels := make([]string, len(result.Columns))
		for i, c := range result.Columns {
			labels[i] = c.Label
		}
		if got := strings.Join(labels, ","); got != strings.Join(a.Values, ",") {
			return fmt.Errorf("result columns are [%s], want [%s]", got, strings.Join(a.Values, ","))
		}
	case AssertLimit:
		if result.Limit != a.Count {
			return fmt.Errorf("effective limit is %d, want %d", result.Limit, a.Count)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
