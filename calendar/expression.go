package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression is a boolean predicate calendar compiled with expr-lang,
// evaluated against a flattened view of the instant under test:
// {Year, Month, Day, Weekday, Hour, Minute, Second}. Grounded on the same
// compile-once/run-many pattern the teacher repo uses for recipient
// filters (parser/expr.go's Expression/compiledExpr), retargeted here from
// recipient fields to time fields.
//
// Example: "Hour >= 9 && Hour < 17 && Weekday != 0 && Weekday != 6" excludes
// nights and weekends.
type Expression struct {
	chronoq.BaseCalendar
	source  string
	program *vm.Program
}

// NewExpression compiles src and returns a calendar that includes an
// instant exactly when src evaluates truthy against it.
func NewExpression(base chronoq.Calendar, src string) (*Expression, error) {
	program, err := expr.Compile(src, expr.Env(timeEnv{}))
	if err != nil {
		return nil, chronoq.NewConfigurationError("invalid calendar expression %q: %v", src, err)
	}
	return &Expression{
		BaseCalendar: chronoq.NewBaseCalendar(base, "expr predicate: "+src),
		source:       src,
		program:      program,
	}, nil
}

// Source returns the expression text this calendar was compiled from.
func (c *Expression) Source() string { return c.source }

type timeEnv struct {
	Year, Day, Hour, Minute, Second int
	Month                           int
	Weekday                         int
}

func envFor(t time.Time) timeEnv {
	return timeEnv{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
		Weekday: int(t.Weekday()),
	}
}

func (c *Expression) IsTimeIncluded(t time.Time) bool {
	result, err := expr.Run(c.program, envFor(t))
	if err != nil {
		return false
	}
	included, _ := result.(bool)
	if !included {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Expression) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t
	step := time.Minute
	const limit = 366 * 24 * 60 // minutes in a year, rounded up
	for i := 0; i < limit; i++ {
		if c.IsTimeIncluded(candidate) {
			return candidate
		}
		candidate = candidate.Add(step)
	}
	return candidate
}
