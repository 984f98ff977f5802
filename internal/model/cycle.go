package model

// dependencyGraph maps a class to the classes it needs declared first:
// its bases and the class types of its by-value members.
//
// Nodes keep insertion order so cycle reports and declaration order are
// deterministic.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

func newDependencyGraph(nodes []string) *dependencyGraph {
	g := &dependencyGraph{edges: make(map[string][]string, len(nodes))}
	g.nodes = append(g.nodes, nodes...)
	for _, n := range nodes {
		g.edges[n] = nil
	}
	return g
}

func (g *dependencyGraph) addEdge(from, to string) {
	g.edges[from] = append(g.edges[from], to)
}

func (g *dependencyGraph) hasSelfLoop(node string) bool {
	for _, n := range g.edges[node] {
		if n == node {
			return true
		}
	}
	return false
}

// firstCycle returns a cycle path such as [A B A], or nil for a DAG.
//
// Strongly connected components are found with Tarjan's algorithm; the
// first SCC of size > 1 (or a self-loop) in node order is reported.
func (g *dependencyGraph) firstCycle() []string {
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 {
			return g.reconstructCyclePath(scc)
		}
		if g.hasSelfLoop(scc[0]) {
			return []string{scc[0], scc[0]}
		}
	}
	return nil
}

func (g *dependencyGraph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to it.
func (g *dependencyGraph) reconstructCyclePath(scc []string) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	start := scc[len(scc)-1] // root of the SCC: the first one visited
	path := []string{start}
	visited := map[string]bool{start: true}
	for cur := start; ; {
		next := ""
		for _, n := range g.edges[cur] {
			if inSCC[n] && (n == start || !visited[n]) {
				next = n
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}

// topoOrder returns the nodes with every dependency before its dependents.
// Only valid on a DAG.
func (g *dependencyGraph) topoOrder() []string {
	done := make(map[string]bool, len(g.nodes))
	var order []string
	var visit func(string)
	visit = func(n string) {
		if done[n] {
			return
		}
		done[n] = true
		for _, dep := range g.edges[n] {
			visit(dep)
		}
		order = append(order, n)
	}
	for _, n := range g.nodes {
		visit(n)
	}
	return order
}
