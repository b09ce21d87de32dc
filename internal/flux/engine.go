package flux

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/models"
)

// Query names the start node, the pruning threshold and the terminal label
// of one traversal.
type Query struct {
	StartKey        string
	StartCategory   string
	MinContribution float64
	TerminalLabel   string
}

// Engine runs flux traversals. An Engine holds configuration only and may be
// shared by concurrent traversals.
type Engine struct {
	log      logrus.FieldLogger
	maxDepth int
	emit     models.EmitMode
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic sink. Expansions are logged at debug level,
// skipped branches at warn level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMaxDepth stops expansion at the given path length. Zero means unbounded.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithEmitMode selects which visited nodes are emitted.
func WithEmitMode(mode models.EmitMode) Option {
	return func(e *Engine) {
		if mode != "" {
			e.emit = mode
		}
	}
}

// New creates an Engine. By default every visited node is emitted, depth is
// unbounded and diagnostics are discarded.
func New(opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{log: discard, emit: models.EmitAll}
	for _, o := range opts {
		o(e)
	}

	return e
}

// Stats counts what a traversal did.
type Stats struct {
	Visited      int `json:"visited"`
	Emitted      int `json:"emitted"`
	Pruned       int `json:"pruned"`
	Reused       int `json:"reused"`
	Skipped      int `json:"skipped"`
	DepthLimited int `json:"depth_limited"`
}

// Run is one prepared traversal. Its hit sequence is single-pass.
type Run struct {
	engine *Engine
	ctx    context.Context //nolint:containedctx // the sequence runs lazily under the caller's context.
	view   GraphView
	query  Query

	start        models.Node
	startState   BranchState
	startIncome  []Incoming
	startIsFinal bool

	used     map[string]bool
	stats    Stats
	consumed bool
}

// frame is one node on the traversal stack with its admitted edges and a
// cursor over them.
type frame struct {
	node  models.Node
	state BranchState
	depth int
	via   string
	edges []Incoming
	next  int
}

// Traverse validates q, resolves the start node and computes its branch
// state. Errors found here are returned before anything is emitted. The
// returned Run produces hits lazily as the caller pulls them.
func (e *Engine) Traverse(ctx context.Context, view GraphView, q Query) (*Run, error) {
	if q.StartKey == "" {
		return nil, models.ErrMissingKey
	}

	if q.TerminalLabel == "" {
		return nil, models.ErrMissingTerminalLabel
	}

	if err := models.ValidateThreshold(q.MinContribution); err != nil {
		return nil, err
	}

	if q.StartCategory == "" {
		q.StartCategory = DefaultCategory
	}

	start, err := view.FindNodeByKey(ctx, q.StartCategory, q.StartKey)
	if err != nil {
		return nil, fmt.Errorf("finding start node: %w", err)
	}

	if start == nil {
		return nil, fmt.Errorf("%s %q: %w", q.StartCategory, q.StartKey, models.ErrNodeNotFound)
	}

	r := &Run{
		engine: e,
		ctx:    ctx,
		view:   view,
		query:  q,
		start:  *start,
		used:   make(map[string]bool),
	}

	if Classify(start.Labels, q.TerminalLabel) == ResultPrune {
		r.startIsFinal = true
		r.startState = BranchState{Contribution: Contribution(nil, 0)}

		return r, nil
	}

	incoming, err := view.IncomingEdges(ctx, start.ID)
	if err != nil {
		return nil, fmt.Errorf("loading incoming edges of start node: %w", err)
	}

	state, err := Propagate(nil, 0, incoming)
	if err != nil {
		return nil, fmt.Errorf("start node %s: %w", start.ID, err)
	}

	r.startState = state
	r.startIncome = incoming

	return r, nil
}

// Start returns the resolved start node.
func (r *Run) Start() models.Node {
	return r.start
}

// Stats returns the counters collected so far.
func (r *Run) Stats() Stats {
	return r.stats
}

// Hits yields visited nodes in depth-first pre-order. Stopping the range
// stops the traversal. A graph or context error is yielded once and ends the
// sequence. Ranging a second time yields nothing.
func (r *Run) Hits() iter.Seq2[models.TraceHit, error] {
	return func(yield func(models.TraceHit, error) bool) {
		if r.consumed {
			return
		}

		r.consumed = true
		r.walk(yield)
	}
}

func (r *Run) walk(yield func(models.TraceHit, error) bool) { //nolint:gocognit,gocyclo,cyclop,funlen // the traversal state machine reads best in one place.
	path := make([]string, 0, 16)

	r.stats.Visited++

	if !r.emit(yield, models.TraceHit{
		Node:         r.start,
		Contribution: r.startState.Contribution,
		Influx:       r.startState.Influx,
		Terminal:     r.startIsFinal,
	}, path) {
		return
	}

	if r.startIsFinal {
		return
	}

	stack := []*frame{r.expand(r.start, r.startState, r.startIncome, 0, "")}

	backtrack := func(via string) {
		if via == "" {
			return
		}

		delete(r.used, via)
		path = path[:len(path)-1]
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.next == len(top.edges) {
			stack = stack[:len(stack)-1]
			backtrack(top.via)

			continue
		}

		in := top.edges[top.next]
		top.next++

		if r.used[in.Edge.ID] {
			r.stats.Reused++

			continue
		}

		if err := r.ctx.Err(); err != nil {
			yield(models.TraceHit{}, err)

			return
		}

		child := in.Source
		depth := top.depth + 1
		r.used[in.Edge.ID] = true
		path = append(path, in.Edge.ID)
		r.stats.Visited++

		if Classify(child.Labels, r.query.TerminalLabel) == ResultPrune {
			if !r.emit(yield, models.TraceHit{
				Node:         child,
				Contribution: Contribution(&top.state, in.Edge.Amount),
				Depth:        depth,
				Terminal:     true,
			}, path) {
				return
			}

			backtrack(in.Edge.ID)

			continue
		}

		incoming, err := r.view.IncomingEdges(r.ctx, child.ID)
		if err != nil {
			yield(models.TraceHit{}, fmt.Errorf("loading incoming edges of %s: %w", child.ID, err))

			return
		}

		state, err := Propagate(&top.state, in.Edge.Amount, incoming)
		if err != nil {
			r.stats.Skipped++
			r.engine.log.WithError(err).WithFields(logrus.Fields{
				"node":  child.ID,
				"depth": depth,
			}).Warn("flux: skipping branch")

			state = BranchState{Contribution: Contribution(&top.state, in.Edge.Amount)}
			incoming = nil
		}

		if !r.emit(yield, models.TraceHit{
			Node:         child,
			Contribution: state.Contribution,
			Influx:       state.Influx,
			Depth:        depth,
		}, path) {
			return
		}

		if err != nil {
			backtrack(in.Edge.ID)

			continue
		}

		if r.engine.maxDepth > 0 && depth >= r.engine.maxDepth {
			r.stats.DepthLimited++
			backtrack(in.Edge.ID)

			continue
		}

		stack = append(stack, r.expand(child, state, incoming, depth, in.Edge.ID))
	}
}

// expand builds the stack frame for a node whose branch state is known.
func (r *Run) expand(node models.Node, state BranchState, incoming []Incoming, depth int, via string) *frame {
	admitted := Admit(state, incoming, r.query.MinContribution)
	r.stats.Pruned += len(incoming) - len(admitted)

	r.engine.log.WithFields(logrus.Fields{
		"node":         node.ID,
		"key":          node.Key,
		"depth":        depth,
		"contribution": state.Contribution,
		"influx":       state.Influx,
		"incoming":     len(incoming),
		"admitted":     len(admitted),
	}).Debug("flux.expand")

	return &frame{node: node, state: state, depth: depth, via: via, edges: admitted}
}

// emit applies the emit mode and hands the hit to the consumer. It returns
// false when the consumer stopped.
func (r *Run) emit(yield func(models.TraceHit, error) bool, hit models.TraceHit, path []string) bool {
	if r.engine.emit == models.EmitTerminal && !hit.Terminal {
		return true
	}

	r.stats.Emitted++
	hit.Path = slices.Clone(path)

	return yield(hit, nil)
}
