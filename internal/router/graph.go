package router

import (
	"container/heap"
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JackSmack1971/DEX-Core-Engine/internal/dex"
)

// edge is one directed swap option out of a graph node. Edges are created
// when the graph is rebuilt and never mutated in place; a rebuild replaces
// the whole graph.
type edge struct {
	to      dex.Token
	adapter *dex.Guarded
	cost    decimal.Decimal
}

// graph maps each token to its outgoing edges. A graph is an immutable
// snapshot: consumers either see the previous complete graph or the next
// one, never a partially-built structure.
type graph struct {
	edges map[dex.Token][]edge
}

// buildGraph walks every adapter's pool listing and inserts a bidirectional
// edge pair per pool with cost = fee + the adapter's gas estimate.
func buildGraph(ctx context.Context, adapters []*dex.Guarded) *graph {
	g := &graph{edges: make(map[dex.Token][]edge)}
	for _, a := range adapters {
		pools, err := a.Pools(ctx)
		if err != nil {
			continue
		}
		gas := a.GasEstimate()
		for _, p := range pools {
			cost := p.Fee.Add(gas)
			g.edges[p.TokenA] = append(g.edges[p.TokenA], edge{to: p.TokenB, adapter: a, cost: cost})
			g.edges[p.TokenB] = append(g.edges[p.TokenB], edge{to: p.TokenA, adapter: a, cost: cost})
		}
	}
	return g
}

// pqItem is a priority queue entry for the shortest-path search.
type pqItem struct {
	token dex.Token
	dist  decimal.Decimal
	index int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist.LessThan(pq[j].dist) }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *priorityQueue) Push(x interface{}) { item := x.(*pqItem); item.index = len(*pq); *pq = append(*pq, item) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// shortestPath runs single-source Dijkstra from tokenIn, terminating early
// once tokenOut is settled. Returns the hop tokens, the adapter per hop,
// and the total cost, or ok=false when tokenOut is unreachable.
func (g *graph) shortestPath(tokenIn, tokenOut dex.Token) (path []dex.Token, adapters []*dex.Guarded, cost decimal.Decimal, ok bool) {
	type hop struct {
		prev    dex.Token
		adapter *dex.Guarded
	}

	dist := map[dex.Token]decimal.Decimal{tokenIn: decimal.Zero}
	prev := make(map[dex.Token]hop)
	settled := make(map[dex.Token]bool)

	pq := priorityQueue{{token: tokenIn, dist: decimal.Zero}}
	heap.Init(&pq)

	for pq.Len() > 0 {
		item := heap.Pop(&pq).(*pqItem)
		if settled[item.token] {
			continue
		}
		settled[item.token] = true
		if item.token == tokenOut {
			break
		}
		for _, e := range g.edges[item.token] {
			if settled[e.to] {
				continue
			}
			next := item.dist.Add(e.cost)
			if cur, seen := dist[e.to]; !seen || next.LessThan(cur) {
				dist[e.to] = next
				prev[e.to] = hop{prev: item.token, adapter: e.adapter}
				heap.Push(&pq, &pqItem{token: e.to, dist: next})
			}
		}
	}

	if !settled[tokenOut] {
		return nil, nil, decimal.Zero, false
	}

	for at := tokenOut; at != tokenIn; {
		h := prev[at]
		path = append([]dex.Token{at}, path...)
		adapters = append([]*dex.Guarded{h.adapter}, adapters...)
		at = h.prev
	}
	path = append([]dex.Token{tokenIn}, path...)
	return path, adapters, dist[tokenOut], true
}

// triangularCycles enumerates every 3-hop cycle a→b→c→a. Cycles over the
// same token triple are deduplicated by the sorted triple, so the two
// traversal directions collapse to the first one discovered.
func (g *graph) triangularCycles() []Cycle {
	var cycles []Cycle
	seen := make(map[string]bool)

	for a, edgesA := range g.edges {
		for _, ab := range edgesA {
			b := ab.to
			if b == a {
				continue
			}
			for _, bc := range g.edges[b] {
				c := bc.to
				if c == a || c == b {
					continue
				}
				for _, ca := range g.edges[c] {
					if ca.to != a {
						continue
					}
					key := tripleKey(a, b, c)
					if seen[key] {
						continue
					}
					seen[key] = true
					cycles = append(cycles, Cycle{
						Adapters: []*dex.Guarded{ab.adapter, bc.adapter, ca.adapter},
						Tokens:   []dex.Token{a, b, c, a},
						Cost:     ab.cost.Add(bc.cost).Add(ca.cost),
					})
					break
				}
			}
		}
	}
	return cycles
}

func tripleKey(a, b, c dex.Token) string {
	t := []string{string(a), string(b), string(c)}
	sort.Strings(t)
	return strings.Join(t, "|")
}
