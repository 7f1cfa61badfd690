// Package ot implements the operational transformation rules used to
// reconcile concurrent edits to a shared document. Transform and Apply are
// pure; all session state lives in the collab package.
package ot

import (
	"fmt"
	"strings"
)

// Kind identifies the effect of an Operation on document text.
type Kind int

const (
	// Insert splices Payload into the document at Position.
	Insert Kind = iota
	// Delete removes len(Payload) characters starting at Position. The
	// removed text is carried in Payload so overlapping deletions can be
	// truncated during transformation.
	Delete
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a wire name onto a Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "insert":
		return Insert, true
	case "delete":
		return Delete, true
	default:
		return 0, false
	}
}

// Operation is an atomic edit authored against a specific document version.
// Position is an offset into the content exactly as it existed at Version;
// applying the operation to any other content requires transforming it first.
type Operation struct {
	Kind     Kind
	Position int
	Payload  string
	Version  int
}

// IsNoop reports whether the operation no longer has any effect. Deletes
// degrade to no-ops when the text they targeted was already removed by a
// concurrent operation.
func (op Operation) IsNoop() bool {
	return op.Payload == ""
}

// Transform rewrites op so it applies cleanly after against, where both were
// authored against the same document version. Violating that precondition is
// a programming error: callers must transform pairwise in exact log order.
//
// Tie-break: when an insert lands at or before op's position, op shifts
// right. Two inserts at the same position therefore order by application
// order. Changing this rule breaks convergence for deployed clients.
func Transform(op, against Operation) Operation {
	if op.Version != against.Version {
		panic(fmt.Sprintf("ot: transform across versions (%d vs %d)", op.Version, against.Version))
	}

	out := op
	out.Version = op.Version + 1

	switch against.Kind {
	case Insert:
		if against.Position <= op.Position {
			out.Position += len(against.Payload)
		}

	case Delete:
		delStart := against.Position
		delEnd := delStart + len(against.Payload)

		opStart := op.Position
		opEnd := opStart
		if op.Kind == Delete {
			opEnd += len(op.Payload)
		}

		switch {
		case opStart < delStart:
			// Entirely before the removed span; untouched.
		case opStart >= delEnd:
			out.Position -= len(against.Payload)
		default:
			// op starts inside the removed span.
			if op.Kind == Insert {
				out.Position = delStart
			} else if opEnd <= delEnd {
				// Fully swallowed; signal the caller to drop it.
				out.Payload = ""
			} else {
				// Keep only the tail that survives the overlap.
				out.Payload = op.Payload[delEnd-opStart:]
				out.Position = delStart
			}
		}
	}

	return out
}

// Apply materialises op against content, clamping out-of-range coordinates
// into the document bounds. A single buffer is built per call.
func Apply(content string, op Operation) string {
	switch op.Kind {
	case Insert:
		if op.Payload == "" {
			return content
		}
		if content == "" {
			return op.Payload
		}

		pos := op.Position
		if pos < 0 {
			pos = 0
		}
		if pos > len(content) {
			pos = len(content)
		}

		var b strings.Builder
		b.Grow(len(content) + len(op.Payload))
		b.WriteString(content[:pos])
		b.WriteString(op.Payload)
		b.WriteString(content[pos:])
		return b.String()

	case Delete:
		start := op.Position
		if start < 0 {
			start = 0
		}
		end := op.Position + len(op.Payload)
		if end > len(content) {
			end = len(content)
		}
		if start >= end || start >= len(content) {
			return content
		}

		var b strings.Builder
		b.Grow(len(content) - (end - start))
		b.WriteString(content[:start])
		b.WriteString(content[end:])
		return b.String()
	}

	return content
}

// TransformBatch brings pending operations, all authored against a common
// stale version, up to date against every operation applied since. Pending
// operations that degrade into empty deletes are dropped. This is the
// reconciliation path for a client that reconnects with a backlog.
func TransformBatch(pending, applied []Operation) []Operation {
	out := make([]Operation, len(pending))
	copy(out, pending)

	for _, step := range applied {
		kept := out[:0]
		for _, op := range out {
			next := Transform(op, step)
			if next.Kind == Delete && next.IsNoop() {
				continue
			}
			kept = append(kept, next)
		}
		out = kept
	}

	return out
}
