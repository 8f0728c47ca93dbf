package flow

import "fmt"

// State is the mutable payload threaded through a graph run.
type State map[string]any

// NodeFunc is the body of one graph node: it receives the current
// state and returns the state to carry forward.
type NodeFunc func(c *Ctx, state State) (State, error)

// Router picks the next node id from the current state. Returning an
// empty string ends the run.
type Router func(state State) string

// Graph is a declarative workflow builder: nodes connected by static
// and conditional edges, compiled into a Workflow whose node
// executions are durable tasks.
//
// Each node step records task framing keyed by the node name and the
// state it saw, so a crashed or replayed graph run resumes at the
// first node whose execution is not yet in the log. Loops are
// supported; MaxSteps bounds runaway cycles.
//
// Example:
//
//	wf, err := flow.NewGraph("triage").
//	    AddNode("classify", classify).
//	    AddNode("escalate", escalate).
//	    AddNode("resolve", resolve).
//	    AddConditionalEdge("classify", func(s flow.State) string {
//	        if s["severity"] == "high" {
//	            return "escalate"
//	        }
//	        return "resolve"
//	    }).
//	    SetEntryPoint("classify").
//	    SetFinishPoint("resolve").
//	    Workflow()
type Graph struct {
	name     string
	nodes    map[string]NodeFunc
	edges    map[string]string
	routers  map[string]Router
	entry    string
	finish   string
	maxSteps int
}

// NewGraph creates an empty graph builder.
func NewGraph(name string) *Graph {
	return &Graph{
		name:     name,
		nodes:    make(map[string]NodeFunc),
		edges:    make(map[string]string),
		routers:  make(map[string]Router),
		maxSteps: 1000,
	}
}

// AddNode registers a node under id.
func (g *Graph) AddNode(id string, fn NodeFunc) *Graph {
	g.nodes[id] = fn
	return g
}

// AddEdge connects from to to unconditionally.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from's successor through a state-dependent
// router. A router takes precedence over a static edge on the same
// node.
func (g *Graph) AddConditionalEdge(from string, route Router) *Graph {
	g.routers[from] = route
	return g
}

// SetEntryPoint names the node a run starts at.
func (g *Graph) SetEntryPoint(id string) *Graph {
	g.entry = id
	return g
}

// SetFinishPoint names the node whose completion ends the run.
func (g *Graph) SetFinishPoint(id string) *Graph {
	g.finish = id
	return g
}

// SetMaxSteps bounds the number of node executions per run. Default
// 1000.
func (g *Graph) SetMaxSteps(n int) *Graph {
	if n > 0 {
		g.maxSteps = n
	}
	return g
}

// Workflow validates the graph and compiles it into a Workflow. The
// workflow input becomes the initial state (merged over an empty
// State); the final state becomes the workflow result.
func (g *Graph) Workflow(opts ...WorkflowOption) (*Workflow, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	// One durable task per node, named graph.node so distinct graphs
	// sharing node ids stay distinct in the log.
	tasks := make(map[string]*Task[State, State], len(g.nodes))
	for id, fn := range g.nodes {
		tasks[id] = NewTask(g.name+"."+id, TaskFunc[State, State](fn))
	}

	return NewWorkflow(g.name, func(c *Ctx) (any, error) {
		state := State{}
		if err := c.BindInput(&state); err != nil {
			return nil, err
		}

		current := g.entry
		for step := 0; ; step++ {
			if step >= g.maxSteps {
				return nil, fmt.Errorf("graph %s exceeded %d steps at node %s", g.name, g.maxSteps, current)
			}
			next, err := tasks[current].Call(c, state)
			if err != nil {
				return nil, err
			}
			state = next

			if current == g.finish {
				return state, nil
			}
			successor := g.successor(current, state)
			if successor == "" {
				return state, nil
			}
			if _, ok := g.nodes[successor]; !ok {
				return nil, fmt.Errorf("graph %s: node %s routed to unknown node %s", g.name, current, successor)
			}
			current = successor
		}
	}, opts...), nil
}

func (g *Graph) successor(id string, state State) string {
	if route, ok := g.routers[id]; ok {
		return route(state)
	}
	return g.edges[id]
}

func (g *Graph) validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph %s has no nodes", g.name)
	}
	if g.entry == "" {
		return fmt.Errorf("graph %s has no entry point", g.name)
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("graph %s: entry point %s is not a node", g.name, g.entry)
	}
	if g.finish != "" {
		if _, ok := g.nodes[g.finish]; !ok {
			return fmt.Errorf("graph %s: finish point %s is not a node", g.name, g.finish)
		}
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("graph %s: edge from unknown node %s", g.name, from)
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("graph %s: edge from %s to unknown node %s", g.name, from, to)
		}
	}
	for from := range g.routers {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("graph %s: conditional edge from unknown node %s", g.name, from)
		}
	}
	return nil
}
