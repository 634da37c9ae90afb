package session

import "sort"

// nodeKind discriminates the kind of record a tree node wraps.
type nodeKind string

const (
	nodeMessage        nodeKind = "message"
	nodeModelChange    nodeKind = "model_change"
	nodeThinkingChange nodeKind = "thinking_change"
	nodeCompaction     nodeKind = "compaction"
)

// node is one entry in the conversation's arena (§9 design note: "an
// arena of messages indexed by id, plus a children map" — generalized
// here to cover meta-event nodes too, since a meta-event also has an id
// and can be the parent of the next record).
type node struct {
	id     string
	parent string
	kind   nodeKind

	message        *Message
	modelChange    *ModelChange
	thinkingChange *ThinkingChange
	compaction     *Compaction
}

// tree is the acyclic, parent-pointer conversation structure (§9: "Never
// model it with owning back-pointers" — children are looked up via a
// separate map, never stored on the node itself).
type tree struct {
	nodes    map[string]*node
	children map[string][]string // parent id -> child ids, insertion order
}

func newTree() *tree {
	return &tree{nodes: map[string]*node{}, children: map[string][]string{}}
}

// insert adds n to the tree. It fails on a duplicate id (I2) or a parent
// that is neither RootID nor an already-known node.
func (t *tree) insert(n *node) error {
	if _, exists := t.nodes[n.id]; exists {
		return ErrDuplicateID
	}
	if n.parent != RootID {
		if _, ok := t.nodes[n.parent]; !ok {
			return ErrUnknownParent
		}
	}
	t.nodes[n.id] = n
	t.children[n.parent] = append(t.children[n.parent], n.id)
	return nil
}

// pathTo returns node ids from root to id inclusive, root-first.
func (t *tree) pathTo(id string) []string {
	var rev []string
	cur := id
	for cur != "" && cur != RootID {
		n, ok := t.nodes[cur]
		if !ok {
			break
		}
		rev = append(rev, cur)
		cur = n.parent
	}
	out := make([]string, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// messagesAlong returns, in root-to-leaf order, every Message node on the
// path to id. Meta-event nodes on the same path are skipped: they affect
// Context only via the compaction hook the agent loop applies separately,
// never as an entry in the message list itself.
func (t *tree) messagesAlong(id string) []Message {
	path := t.pathTo(id)
	out := make([]Message, 0, len(path))
	for _, nid := range path {
		if n := t.nodes[nid]; n.kind == nodeMessage {
			out = append(out, *n.message)
		}
	}
	return out
}

// activeContext returns, for the path to id, the summary of the latest
// compaction node encountered (if any) and the Message nodes that follow
// it — the messages a compaction is meant to replace are simply omitted,
// since the on-disk tree itself is never rewritten (§3, §9 glossary:
// "without touching the on-disk history").
func (t *tree) activeContext(id string) (summary string, messages []Message) {
	path := t.pathTo(id)
	cutoff := 0
	for i, nid := range path {
		if n := t.nodes[nid]; n.kind == nodeCompaction {
			summary = n.compaction.Summary
			cutoff = i + 1
		}
	}
	for _, nid := range path[cutoff:] {
		if n := t.nodes[nid]; n.kind == nodeMessage {
			messages = append(messages, *n.message)
		}
	}
	return summary, messages
}

// leaves returns every node id with no children, sorted for determinism.
func (t *tree) leaves() []string {
	var out []string
	for id := range t.nodes {
		if len(t.children[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// has reports whether id is RootID or a known node.
func (t *tree) has(id string) bool {
	if id == RootID {
		return true
	}
	_, ok := t.nodes[id]
	return ok
}
