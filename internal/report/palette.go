package report

import (
	"github.com/fatih/color"
	"github.com/vk/teeio-validator/internal/result"
)

// palette colours status words. A disabled palette prints plain text.
type palette struct {
	pass, failed, notTested, heading *color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		pass:      color.New(color.FgGreen, color.Bold),
		failed:    color.New(color.FgRed, color.Bold),
		notTested: color.New(color.FgYellow),
		heading:   color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.pass, p.failed, p.notTested, p.heading} {
			c.DisableColor()
		}
	} else {
		// fatih/color turns itself off for non-terminals; an explicit
		// request for colour wins.
		for _, c := range []*color.Color{p.pass, p.failed, p.notTested, p.heading} {
			c.EnableColor()
		}
	}
	return p
}

func (p *palette) status(st result.Status) string {
	switch st {
	case result.Pass:
		return p.pass.Sprint(st.String())
	case result.Failed:
		return p.failed.Sprint(st.String())
	}
	return p.notTested.Sprint(st.String())
}
