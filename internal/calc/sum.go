package calc

import (
	"context"
	"fmt"
)

// Sum reports a subject's aggregate value for the district.
type Sum struct {
	Subject string
}

// NewSum creates a sum calculator named "sum:<subject>".
func NewSum(subject string) *Sum {
	return &Sum{Subject: subject}
}

func (c *Sum) Name() string {
	return "sum:" + c.Subject
}

func (c *Sum) Compute(_ context.Context, in Input) (Result, error) {
	cc, ok := aggregate(in, c.Subject)
	if !ok {
		return Result{}, fmt.Errorf("no aggregate for subject %q", c.Subject)
	}
	return Result{Calculator: c.Name(), Value: cc.Number}, nil
}
