package app

import (
	"sync"

	"github.com/vk/teeio-validator/internal/dispatcher"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/result"
)

// Progress is the snapshot served on /progress.
type Progress struct {
	Suite         string `json:"suite,omitempty"`
	Configuration string `json:"configuration,omitempty"`
	Topology      string `json:"topology,omitempty"`
	Case          string `json:"case,omitempty"`

	SuitesFinished int  `json:"suites_finished"`
	CasesFinished  int  `json:"cases_finished"`
	Passed         int  `json:"passed"`
	Failed         int  `json:"failed"`
	Done           bool `json:"done"`
}

// progress tracks the dispatcher's position for the HTTP endpoint, which
// reads it from another goroutine.
type progress struct {
	dispatcher.NopObserver

	mu  sync.Mutex
	cur Progress
}

var _ dispatcher.Observer = (*progress)(nil)

func newProgress() *progress {
	return &progress{}
}

func (p *progress) update(fn func(*Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.cur)
}

func (p *progress) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *progress) SuiteStarted(s *result.Suite) {
	p.update(func(cur *Progress) { cur.Suite = s.Name })
}

func (p *progress) SuiteFinished(*result.Suite) {
	p.update(func(cur *Progress) {
		cur.SuitesFinished++
		cur.Configuration, cur.Topology, cur.Case = "", "", ""
	})
}

func (p *progress) GroupStarted(cfg *result.Config, g *result.Group) {
	p.update(func(cur *Progress) {
		cur.Configuration = cfg.Name
		cur.Topology = g.Topology
	})
}

func (p *progress) CaseStarted(id filter.CaseID) {
	p.update(func(cur *Progress) { cur.Case = id.Case })
}

func (p *progress) CaseFinished(_ filter.CaseID, c *result.Case) {
	p.update(func(cur *Progress) {
		cur.CasesFinished++
		cur.Passed += c.Passed
		cur.Failed += c.Failed
	})
}

func (p *progress) finish() {
	p.update(func(cur *Progress) {
		cur.Done = true
		cur.Suite, cur.Configuration, cur.Topology, cur.Case = "", "", "", ""
	})
}
