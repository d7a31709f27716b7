package dag

// Three-color depth-first search: white (unvisited), grey (on the current
// recursion stack), black (fully explored). Hitting a grey node closes a
// cycle.

type color uint8

const (
	white color = iota
	grey
	black
)

func (g *Graph) detectCycles() error {
	colors := make([]color, len(g.instances))
	var stack []int

	var visit func(i int) *CycleError
	visit = func(i int) *CycleError {
		colors[i] = grey
		stack = append(stack, i)

		for _, dep := range g.deps[i] {
			switch colors[dep] {
			case grey:
				return g.cycleError(stack, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[i] = black
		return nil
	}

	for i := range g.instances {
		if colors[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleError trims the DFS stack to the offending loop and renders it as
// instance identifiers, repeating the entry node to close the path.
func (g *Graph) cycleError(stack []int, entry int) *CycleError {
	start := 0
	for i, n := range stack {
		if n == entry {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		path = append(path, g.instances[n].ID)
	}
	path = append(path, g.instances[entry].ID)
	return &CycleError{Path: path}
}
