package entities

// Role describes why a person appears in a family tree.
type Role string

const (
	RoleRoot       Role = "root"
	RoleAncestor   Role = "ancestor"
	RoleDescendant Role = "descendant"
	RoleSibling    Role = "sibling"
	RoleSpouse     Role = "spouse"
)

// LinkKind is the category of an edge in a family tree.
type LinkKind string

const (
	LinkParentChild LinkKind = "parent_child"
	LinkSpousal     LinkKind = "spousal"
)

// AnomalyKind classifies a data-quality finding surfaced while building a tree.
type AnomalyKind string

const (
	// AnomalyCycle means a person was reached as their own ancestor or descendant.
	AnomalyCycle AnomalyKind = "cycle"
	// AnomalyGenerationConflict means a person was reached at two different generations.
	AnomalyGenerationConflict AnomalyKind = "generation_conflict"
)

// TreeNode is a positioned person in a family tree.
// Generation is relative to the root: negative for ancestors, positive for descendants.
type TreeNode struct {
	PersonID   int64   `json:"person_id"`
	Person     *Person `json:"person"`
	Generation int     `json:"generation"`
	Lateral    int     `json:"lateral"`
	Role       Role    `json:"role"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// TreeLink connects two nodes. For parent-child links From is the parent.
type TreeLink struct {
	From int64    `json:"from"`
	To   int64    `json:"to"`
	Kind LinkKind `json:"kind"`
}

// TreeAnomaly records a person that was not revisited because the graph is inconsistent.
type TreeAnomaly struct {
	PersonID int64       `json:"person_id"`
	ViaID    int64       `json:"via_id"`
	Kind     AnomalyKind `json:"kind"`
}

// FamilyTree is the derived, generation-bounded view of the graph around a root person.
// It is never persisted.
type FamilyTree struct {
	RootID         int64         `json:"root_id"`
	MaxGenerations int           `json:"max_generations"`
	Nodes          []TreeNode    `json:"nodes"`
	Links          []TreeLink    `json:"links"`
	Anomalies      []TreeAnomaly `json:"anomalies,omitempty"`
}

// Node returns the node for a person, or nil.
func (t *FamilyTree) Node(personID int64) *TreeNode {
	for i := range t.Nodes {
		if t.Nodes[i].PersonID == personID {
			return &t.Nodes[i]
		}
	}
	return nil
}

// Generation returns the nodes of one generation in lateral order.
func (t *FamilyTree) Generation(gen int) []TreeNode {
	var nodes []TreeNode
	for i := range t.Nodes {
		if t.Nodes[i].Generation == gen {
			nodes = append(nodes, t.Nodes[i])
		}
	}
	return nodes
}

// GenerationRange returns the lowest and highest generation present.
func (t *FamilyTree) GenerationRange() (lowest, highest int) {
	for i := range t.Nodes {
		g := t.Nodes[i].Generation
		lowest = min(lowest, g)
		highest = max(highest, g)
	}
	return lowest, highest
}

// Bounds returns the bounding box of all node positions, given the node size.
func (t *FamilyTree) Bounds(nodeWidth, nodeHeight float64) (minX, minY, maxX, maxY float64) {
	if len(t.Nodes) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = t.Nodes[0].X, t.Nodes[0].Y
	maxX, maxY = minX+nodeWidth, minY+nodeHeight
	for i := range t.Nodes[1:] {
		n := &t.Nodes[i+1]
		minX = min(minX, n.X)
		minY = min(minY, n.Y)
		maxX = max(maxX, n.X+nodeWidth)
		maxY = max(maxY, n.Y+nodeHeight)
	}
	return minX, minY, maxX, maxY
}
