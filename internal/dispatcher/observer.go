package dispatcher

import (
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/result"
)

// Observer receives progress events while a run executes. Events arrive on
// the dispatching goroutine, in dispatch order.
type Observer interface {
	SuiteStarted(s *result.Suite)
	SuiteFinished(s *result.Suite)
	GroupStarted(cfg *result.Config, g *result.Group)
	GroupFinished(cfg *result.Config, g *result.Group)
	CaseStarted(id filter.CaseID)
	AssertionRecorded(id filter.CaseID, a *result.Assertion)
	CaseFinished(id filter.CaseID, c *result.Case)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) SuiteStarted(*result.Suite)                         {}
func (NopObserver) SuiteFinished(*result.Suite)                        {}
func (NopObserver) GroupStarted(*result.Config, *result.Group)         {}
func (NopObserver) GroupFinished(*result.Config, *result.Group)        {}
func (NopObserver) CaseStarted(filter.CaseID)                          {}
func (NopObserver) AssertionRecorded(filter.CaseID, *result.Assertion) {}
func (NopObserver) CaseFinished(filter.CaseID, *result.Case)           {}

// Observers fans every event out to each member in order.
type Observers []Observer

func (o Observers) SuiteStarted(s *result.Suite) {
	for _, ob := range o {
		ob.SuiteStarted(s)
	}
}

func (o Observers) SuiteFinished(s *result.Suite) {
	for _, ob := range o {
		ob.SuiteFinished(s)
	}
}

func (o Observers) GroupStarted(cfg *result.Config, g *result.Group) {
	for _, ob := range o {
		ob.GroupStarted(cfg, g)
	}
}

func (o Observers) GroupFinished(cfg *result.Config, g *result.Group) {
	for _, ob := range o {
		ob.GroupFinished(cfg, g)
	}
}

func (o Observers) CaseStarted(id filter.CaseID) {
	for _, ob := range o {
		ob.CaseStarted(id)
	}
}

func (o Observers) AssertionRecorded(id filter.CaseID, a *result.Assertion) {
	for _, ob := range o {
		ob.AssertionRecorded(id, a)
	}
}

func (o Observers) CaseFinished(id filter.CaseID, c *result.Case) {
	for _, ob := range o {
		ob.CaseFinished(id, c)
	}
}
