package result

import (
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"
)

// CaseReporter is how case bodies record assertions. One is created per case
// execution and handed to the plugin through the case context.
//
// It implements assert.TestingT, so testify assertions can be pointed at it
// directly; each testify failure becomes one FAILED assertion.
type CaseReporter struct {
	c *Case

	// OnRecord, when set, observes every recorded assertion.
	OnRecord func(*Assertion)
}

var _ assert.TestingT = (*CaseReporter)(nil)

// NewCaseReporter returns a reporter appending to c.
func NewCaseReporter(c *Case) *CaseReporter {
	return &CaseReporter{c: c}
}

// Case returns the case being reported on.
func (r *CaseReporter) Case() *Case { return r.c }

func (r *CaseReporter) record(kind AssertionKind, st Status, format string, args []any) *Assertion {
	a := r.c.record(kind, st, fmt.Sprintf(format, args...))
	if r.OnRecord != nil {
		r.OnRecord(a)
	}
	return a
}

// Pass records a passing assertion.
func (r *CaseReporter) Pass(format string, args ...any) {
	r.record(KindTest, Pass, format, args)
}

// Fail records a failing assertion. The case keeps running.
func (r *CaseReporter) Fail(format string, args ...any) {
	r.record(KindTest, Failed, format, args)
}

// Check records PASS or FAILED depending on ok and returns ok.
func (r *CaseReporter) Check(ok bool, format string, args ...any) bool {
	r.record(KindTest, verdict(ok), format, args)
	return ok
}

// Separator records an informational entry that does not count.
func (r *CaseReporter) Separator(format string, args ...any) {
	r.record(KindSeparator, NotTested, format, args)
}

// Errorf implements assert.TestingT by recording a FAILED assertion.
func (r *CaseReporter) Errorf(format string, args ...any) {
	r.record(KindTest, Failed, "%s", []any{condense(fmt.Sprintf(format, args...))})
}

// Assert runs a testify assertion and records exactly one assertion for it:
// PASS with the description, or FAILED with the description and testify's
// explanation as evidence.
func (r *CaseReporter) Assert(description string, fn func(t assert.TestingT) bool) bool {
	capture := &capturingT{}
	ok := fn(capture) && len(capture.messages) == 0
	if ok {
		r.Pass("%s", description)
		return true
	}
	r.Fail("%s: %s", description, strings.Join(capture.messages, "; "))
	return false
}

type capturingT struct {
	messages []string
}

func (c *capturingT) Errorf(format string, args ...any) {
	c.messages = append(c.messages, condense(fmt.Sprintf(format, args...)))
}

// condense strips testify's trace header and folds its multi-line output.
func condense(msg string) string {
	if i := strings.Index(msg, "Error:"); i >= 0 {
		msg = msg[i+len("Error:"):]
	}
	if i := strings.Index(msg, "Test:"); i >= 0 {
		msg = msg[:i]
	}
	return strings.Join(strings.Fields(msg), " ")
}
