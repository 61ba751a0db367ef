package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carleson/genlib/internal/domain/entities"
	"github.com/carleson/genlib/internal/domain/ports"
)

// Generation bounds accepted by FamilyTreeService.Build.
const (
	MinGenerations = 1
	MaxGenerations = 5
)

// TreeLayout holds the node size and spacing used to position tree nodes.
type TreeLayout struct {
	NodeWidth         float64
	NodeHeight        float64
	HorizontalSpacing float64
	VerticalSpacing   float64
}

// DefaultTreeLayout returns the default node size and spacing.
func DefaultTreeLayout() TreeLayout {
	return TreeLayout{NodeWidth: 150, NodeHeight: 80, HorizontalSpacing: 50, VerticalSpacing: 100}
}

// FamilyTreeService derives generation-bounded family trees from the graph.
type FamilyTreeService struct {
	store  ports.GraphReader
	guard  *GraphGuard
	layout TreeLayout
	logger *slog.Logger
}

// NewFamilyTreeService creates a tree service. A zero layout uses
// DefaultTreeLayout and a nil logger uses slog.Default().
func NewFamilyTreeService(store ports.GraphReader, guard *GraphGuard, layout TreeLayout, logger *slog.Logger) *FamilyTreeService {
	if layout == (TreeLayout{}) {
		layout = DefaultTreeLayout()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FamilyTreeService{store: store, guard: guard, layout: layout, logger: logger}
}

// Layout returns the layout used for positioning.
func (s *FamilyTreeService) Layout() TreeLayout {
	return s.layout
}

// Build returns the family tree around rootID reaching maxGenerations up and
// down. Inconsistent data such as cycles is reported as anomalies, not errors.
// Two builds over the same graph state return identical trees.
func (s *FamilyTreeService) Build(ctx context.Context, rootID int64, maxGenerations int) (*entities.FamilyTree, error) {
	if maxGenerations < MinGenerations || maxGenerations > MaxGenerations {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidGenerations, maxGenerations)
	}

	ctx, span := tracer.Start(ctx, "services.FamilyTreeService.Build",
		trace.WithAttributes(
			attribute.Int64("tree.root_id", rootID),
			attribute.Int("tree.max_generations", maxGenerations),
		),
	)
	defer span.End()

	started := timeNow()
	var tree *entities.FamilyTree
	err := s.guard.Read(func() error {
		var err error
		tree, err = s.build(ctx, rootID, maxGenerations)
		return err
	})
	duration := timeNow().Sub(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordTreeMetrics(ctx, duration, 0, 0, false)
		return nil, err
	}

	recordTreeMetrics(ctx, duration, len(tree.Nodes), len(tree.Anomalies), true)
	span.SetAttributes(
		attribute.Int("tree.nodes", len(tree.Nodes)),
		attribute.Int("tree.anomalies", len(tree.Anomalies)),
	)
	span.SetStatus(codes.Ok, "")
	s.logger.DebugContext(ctx, "family tree built",
		slog.Int64("root_id", rootID),
		slog.Int("generations", maxGenerations),
		slog.Int("nodes", len(tree.Nodes)),
		slog.Int("links", len(tree.Links)),
		slog.Duration("duration", duration),
	)
	return tree, nil
}

func (s *FamilyTreeService) build(ctx context.Context, rootID int64, maxGenerations int) (*entities.FamilyTree, error) {
	root, err := s.store.GetPerson(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("getting root person: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("person %d: %w", rootID, ports.ErrPersonNotFound)
	}

	b := &treeBuilder{
		store:  s.store,
		logger: s.logger,
		limit:  maxGenerations,
		nodes:  make(map[int64]*entities.TreeNode),
		rels:   make(map[int64][]entities.Relationship),
		seen:   make(map[entities.TreeAnomaly]bool),
	}
	b.add(rootID, 0, entities.RoleRoot)

	steps := []func(context.Context) error{
		b.walkAncestors,
		b.walkDescendants,
		b.addSiblings,
		b.addSpouses,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return nil, err
		}
	}

	links, err := b.links(ctx)
	if err != nil {
		return nil, err
	}

	tree := &entities.FamilyTree{
		RootID:         rootID,
		MaxGenerations: maxGenerations,
		Links:          links,
		Anomalies:      b.anomalies,
	}
	tree.Nodes, err = b.positioned(ctx, s.layout)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// treeBuilder accumulates the nodes of one build. Every person is visited
// at most once; the node map is the visited set.
type treeBuilder struct {
	store     ports.GraphReader
	logger    *slog.Logger
	limit     int
	nodes     map[int64]*entities.TreeNode
	order     []int64 // insertion order
	rels      map[int64][]entities.Relationship
	anomalies []entities.TreeAnomaly
	seen      map[entities.TreeAnomaly]bool
}

func (b *treeBuilder) add(id int64, gen int, role entities.Role) {
	b.nodes[id] = &entities.TreeNode{PersonID: id, Generation: gen, Role: role}
	b.order = append(b.order, id)
}

func (b *treeBuilder) relationshipsOf(ctx context.Context, id int64) ([]entities.Relationship, error) {
	if rels, ok := b.rels[id]; ok {
		return rels, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rels, err := b.store.RelationshipsOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading relationships of %d: %w", id, err)
	}
	b.rels[id] = rels
	return rels, nil
}

// walkAncestors follows parent links upward to generation -limit.
func (b *treeBuilder) walkAncestors(ctx context.Context) error {
	return b.walk(ctx, -1, entities.RoleAncestor, func(r *entities.Relationship, id int64) (int64, bool) {
		return r.ParentFor(id)
	})
}

// walkDescendants follows child links downward to generation +limit.
func (b *treeBuilder) walkDescendants(ctx context.Context) error {
	return b.walk(ctx, 1, entities.RoleDescendant, func(r *entities.Relationship, id int64) (int64, bool) {
		return r.ChildFor(id)
	})
}

func (b *treeBuilder) walk(
	ctx context.Context,
	step int,
	role entities.Role,
	next func(*entities.Relationship, int64) (int64, bool),
) error {
	queue := []int64{b.order[0]}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		gen := b.nodes[id].Generation
		if gen*step >= b.limit {
			continue
		}

		rels, err := b.relationshipsOf(ctx, id)
		if err != nil {
			return err
		}
		for i := range rels {
			other, ok := next(&rels[i], id)
			if !ok {
				continue
			}
			if _, visited := b.nodes[other]; visited {
				b.revisit(ctx, other, id, gen+step, step)
				continue
			}
			b.add(other, gen+step, role)
			queue = append(queue, other)
		}
	}
	return nil
}

// revisit records an anomaly when a visited person is reached at a
// generation other than expected. Reaching a person at or beyond the
// generation it was reached from, against the direction of travel, is a cycle.
func (b *treeBuilder) revisit(ctx context.Context, personID, viaID int64, expected, step int) {
	node := b.nodes[personID]
	if node.Generation == expected {
		return
	}

	kind := entities.AnomalyGenerationConflict
	viaGen := b.nodes[viaID].Generation
	if step != 0 && (node.Generation-viaGen)*step <= 0 {
		kind = entities.AnomalyCycle
	}

	a := entities.TreeAnomaly{PersonID: personID, ViaID: viaID, Kind: kind}
	if b.seen[a] {
		return
	}
	b.seen[a] = true
	b.anomalies = append(b.anomalies, a)
	b.logger.WarnContext(ctx, "family tree anomaly",
		slog.String("kind", string(kind)),
		slog.Int64("person_id", personID),
		slog.Int64("via_id", viaID),
		slog.Int("generation", node.Generation),
		slog.Int("expected_generation", expected),
	)
}

// nodesWithRole returns the ids of nodes with one of the roles, ordered by
// generation and then id.
func (b *treeBuilder) nodesWithRole(roles ...entities.Role) []int64 {
	var ids []int64
	for _, id := range b.order {
		if slices.Contains(roles, b.nodes[id].Role) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(x, y int64) int {
		return cmp.Or(cmp.Compare(b.nodes[x].Generation, b.nodes[y].Generation), cmp.Compare(x, y))
	})
	return ids
}

// addSiblings adds the unvisited children of every ancestor one generation
// below it, then explicit siblings of the root line.
func (b *treeBuilder) addSiblings(ctx context.Context) error {
	for _, id := range b.nodesWithRole(entities.RoleAncestor) {
		gen := b.nodes[id].Generation
		rels, err := b.relationshipsOf(ctx, id)
		if err != nil {
			return err
		}
		for i := range rels {
			child, ok := rels[i].ChildFor(id)
			if !ok {
				continue
			}
			if _, visited := b.nodes[child]; visited {
				b.revisit(ctx, child, id, gen+1, 1)
				continue
			}
			b.add(child, gen+1, entities.RoleSibling)
		}
	}

	for _, id := range b.nodesWithRole(entities.RoleRoot, entities.RoleAncestor) {
		gen := b.nodes[id].Generation
		rels, err := b.relationshipsOf(ctx, id)
		if err != nil {
			return err
		}
		for i := range rels {
			if rels[i].Category != entities.CategorySibling {
				continue
			}
			other := rels[i].Other(id)
			if _, visited := b.nodes[other]; visited {
				b.revisit(ctx, other, id, gen, 0)
				continue
			}
			b.add(other, gen, entities.RoleSibling)
		}
	}
	return nil
}

// addSpouses adds unvisited spouses of the root, ancestors and descendants
// at their partner's generation.
func (b *treeBuilder) addSpouses(ctx context.Context) error {
	for _, id := range b.nodesWithRole(entities.RoleRoot, entities.RoleAncestor, entities.RoleDescendant) {
		gen := b.nodes[id].Generation
		rels, err := b.relationshipsOf(ctx, id)
		if err != nil {
			return err
		}
		for i := range rels {
			if rels[i].Category != entities.CategorySpouse {
				continue
			}
			other := rels[i].Other(id)
			if _, visited := b.nodes[other]; visited {
				b.revisit(ctx, other, id, gen, 0)
				continue
			}
			b.add(other, gen, entities.RoleSpouse)
		}
	}
	return nil
}

// links returns the parent-child and spouse relationships between nodes.
func (b *treeBuilder) links(ctx context.Context) ([]entities.TreeLink, error) {
	seen := make(map[int64]bool)
	links := []entities.TreeLink{}
	for _, id := range b.order {
		rels, err := b.relationshipsOf(ctx, id)
		if err != nil {
			return nil, err
		}
		for i := range rels {
			r := &rels[i]
			if seen[r.ID] {
				continue
			}
			if _, ok := b.nodes[r.Other(id)]; !ok {
				continue
			}
			seen[r.ID] = true
			switch r.Category {
			case entities.CategoryParentChild:
				links = append(links, entities.TreeLink{From: r.ParentID(), To: r.ChildID(), Kind: entities.LinkParentChild})
			case entities.CategorySpouse:
				links = append(links, entities.TreeLink{From: r.LowID, To: r.HighID, Kind: entities.LinkSpousal})
			}
		}
	}
	slices.SortFunc(links, func(x, y entities.TreeLink) int {
		return cmp.Or(cmp.Compare(x.Kind, y.Kind), cmp.Compare(x.From, y.From), cmp.Compare(x.To, y.To))
	})
	return links, nil
}

// positioned assigns lateral slots and coordinates and returns the nodes
// ordered by generation and lateral slot.
func (b *treeBuilder) positioned(ctx context.Context, layout TreeLayout) ([]entities.TreeNode, error) {
	ids := slices.Clone(b.order)
	persons, err := b.store.GetPersons(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading tree persons: %w", err)
	}
	for _, p := range persons {
		if n, ok := b.nodes[p.ID]; ok {
			n.Person = p
		}
	}

	rows := make(map[int][]int64)
	lowest, highest := 0, 0
	for _, id := range ids {
		g := b.nodes[id].Generation
		rows[g] = append(rows[g], id)
		lowest, highest = min(lowest, g), max(highest, g)
	}

	result := make([]entities.TreeNode, 0, len(ids))
	for gen := lowest; gen <= highest; gen++ {
		row := rows[gen]
		if len(row) == 0 {
			continue
		}
		keys := make(map[int64]treeSlot, len(row))

		for _, id := range row {
			if b.nodes[id].Role == entities.RoleSpouse {
				continue
			}
			k := treeSlot{group: id}
			for _, r := range b.rels[id] {
				parent, ok := r.ParentFor(id)
				if !ok {
					continue
				}
				pn, ok := b.nodes[parent]
				if !ok || pn.Generation != gen-1 {
					continue
				}
				if !k.anchored || pn.Lateral < k.anchor {
					k.anchor, k.anchored = pn.Lateral, true
				}
			}
			keys[id] = k
		}

		for _, id := range row {
			if b.nodes[id].Role != entities.RoleSpouse {
				continue
			}
			k := treeSlot{group: id, spouse: true}
			if partner, ok := b.partnerOf(id, gen, keys); ok {
				k = keys[partner]
				k.spouse = true
			}
			keys[id] = k
		}

		slices.SortFunc(row, func(x, y int64) int {
			kx, ky := keys[x], keys[y]
			if kx.anchored != ky.anchored {
				if kx.anchored {
					return -1
				}
				return 1
			}
			return cmp.Or(
				cmp.Compare(kx.anchor, ky.anchor),
				cmp.Compare(kx.group, ky.group),
				boolOrder(kx.spouse, ky.spouse),
				cmp.Compare(x, y),
			)
		})

		width := float64(len(row))*layout.NodeWidth + float64(len(row)-1)*layout.HorizontalSpacing
		left := -width / 2
		y := float64(gen-lowest) * (layout.NodeHeight + layout.VerticalSpacing)
		for i, id := range row {
			n := b.nodes[id]
			n.Lateral = i
			n.X = left + float64(i)*(layout.NodeWidth+layout.HorizontalSpacing)
			n.Y = y
			result = append(result, *n)
		}
	}
	return result, nil
}

// treeSlot is the sort key of a node within its generation.
type treeSlot struct {
	anchor   int  // lowest lateral slot of a parent in the row above
	anchored bool // false when no parent is in the row above
	group    int64
	spouse   bool
}

// partnerOf returns the lowest-id non-spouse node of the generation married
// to a spouse-role node.
func (b *treeBuilder) partnerOf(id int64, gen int, keys map[int64]treeSlot) (int64, bool) {
	var partner int64
	found := false
	for _, r := range b.rels[id] {
		if r.Category != entities.CategorySpouse {
			continue
		}
		other := r.Other(id)
		n, ok := b.nodes[other]
		if !ok || n.Generation != gen || n.Role == entities.RoleSpouse {
			continue
		}
		if _, ok := keys[other]; !ok {
			continue
		}
		if !found || other < partner {
			partner, found = other, true
		}
	}
	return partner, found
}

func boolOrder(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	default:
		return 1
	}
}
