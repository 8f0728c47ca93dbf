package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/duraflow-go/flow"
	"github.com/dshills/duraflow-go/flow/catalog"
)

// Demo workflows. Real deployments replace this with their own
// registrations; the engine only runs what the catalog knows about.

var greetTask = flow.NewTask("greet", func(_ *flow.Ctx, name string) (string, error) {
	if name == "" {
		name = "world"
	}
	return "hello, " + name, nil
})

var shoutTask = flow.NewTask("shout", func(_ *flow.Ctx, s string) (string, error) {
	return strings.ToUpper(s), nil
})

type orderInput struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type orderResult struct {
	OrderID   string    `json:"order_id"`
	ChargedAt time.Time `json:"charged_at"`
	Total     float64   `json:"total"`
}

var chargeTask = flow.NewTask("charge", func(c *flow.Ctx, in orderInput) (orderResult, error) {
	if in.Amount <= 0 {
		return orderResult{}, fmt.Errorf("invalid amount %.2f", in.Amount)
	}
	chargedAt, err := flow.Now(c, "charge_"+in.OrderID)
	if err != nil {
		return orderResult{}, err
	}
	return orderResult{OrderID: in.OrderID, ChargedAt: chargedAt, Total: in.Amount}, nil
}).WithRetry(3, time.Second, 2.0).
	WithTimeout(30 * time.Second)

func registerWorkflows(cat *catalog.Catalog) {
	cat.Register(flow.NewWorkflow("greet", func(c *flow.Ctx) (any, error) {
		var name string
		if err := c.BindInput(&name); err != nil {
			return nil, err
		}
		greeting, err := greetTask.Call(c, name)
		if err != nil {
			return nil, err
		}
		return shoutTask.Call(c, greeting)
	}), "v1")

	cat.Register(flow.NewWorkflow("order", func(c *flow.Ctx) (any, error) {
		var in orderInput
		if err := c.BindInput(&in); err != nil {
			return nil, err
		}
		res, err := chargeTask.Call(c, in)
		if err != nil {
			return nil, err
		}
		// Orders above the review threshold park until an operator
		// resumes the execution.
		if res.Total > 10000 {
			if err := flow.Pause(c, "manual_review_"+in.OrderID); err != nil {
				return nil, err
			}
		}
		return res, nil
	}), "v1")

	cat.Register(flow.NewWorkflow("fanout", func(c *flow.Ctx) (any, error) {
		var names []string
		if err := c.BindInput(&names); err != nil {
			return nil, err
		}
		branches := make([]flow.Branch, len(names))
		for i, name := range names {
			branches[i] = func(c *flow.Ctx) (any, error) {
				return greetTask.Call(c, name)
			}
		}
		return flow.Parallel(c, branches...)
	}), "v1")
}
