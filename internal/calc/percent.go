package calc

import (
	"context"
	"fmt"
)

// Percent reports a subject's aggregate as a fraction of its configured
// denominator subject.
type Percent struct {
	Subject string
}

// NewPercent creates a percent calculator named "percent:<subject>".
func NewPercent(subject string) *Percent {
	return &Percent{Subject: subject}
}

func (c *Percent) Name() string {
	return "percent:" + c.Subject
}

func (c *Percent) Compute(_ context.Context, in Input) (Result, error) {
	cc, ok := aggregate(in, c.Subject)
	if !ok {
		return Result{}, fmt.Errorf("no aggregate for subject %q", c.Subject)
	}
	return Result{Calculator: c.Name(), Value: cc.Percentage}, nil
}
