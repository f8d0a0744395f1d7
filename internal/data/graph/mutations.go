package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

// NodeRef identifies a node by label plus key properties.
type NodeRef struct {
	Label string
	Key   map[string]any
}

// Mutation is one idempotent graph write: a node merge or an edge merge.
// Merges are keyed on label + key properties; OnCreate/Props apply only when
// the pattern did not exist yet, so re-running an ingest never overwrites.
type Mutation interface {
	statement(paramPrefix string) (string, map[string]any, error)
}

type NodeMerge struct {
	Label    string
	Key      map[string]any
	OnCreate map[string]any
}

type EdgeMerge struct {
	From  NodeRef
	To    NodeRef
	Type  string
	Props map[string]any
}

func (m NodeMerge) statement(paramPrefix string) (string, map[string]any, error) {
	if err := validateIdentifier(m.Label); err != nil {
		return "", nil, err
	}
	if len(m.Key) == 0 {
		return "", nil, domain.Errorf(domain.KindInvalidInput, "graph.merge_node", "node merge for %s requires key properties", m.Label)
	}
	params := map[string]any{}
	keyPattern, err := keyPatternClause(m.Key, paramPrefix+"k", params)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("MERGE (n:%s {%s})", m.Label, keyPattern)
	if len(m.OnCreate) > 0 {
		params[paramPrefix+"oc"] = m.OnCreate
		q += fmt.Sprintf("\nON CREATE SET n += $%soc", paramPrefix)
	}
	return q, params, nil
}

func (m EdgeMerge) statement(paramPrefix string) (string, map[string]any, error) {
	for _, label := range []string{m.From.Label, m.To.Label, m.Type} {
		if err := validateIdentifier(label); err != nil {
			return "", nil, err
		}
	}
	if len(m.From.Key) == 0 || len(m.To.Key) == 0 {
		return "", nil, domain.Errorf(domain.KindInvalidInput, "graph.merge_edge", "edge merge %s requires endpoint keys", m.Type)
	}
	params := map[string]any{}
	fromPattern, err := keyPatternClause(m.From.Key, paramPrefix+"f", params)
	if err != nil {
		return "", nil, err
	}
	toPattern, err := keyPatternClause(m.To.Key, paramPrefix+"t", params)
	if err != nil {
		return "", nil, err
	}
	// Endpoints are merged too, so a late-arriving edge still lands even when
	// the ingest that would create its nodes has not run yet.
	q := fmt.Sprintf(
		"MERGE (a:%s {%s})\nMERGE (b:%s {%s})\nMERGE (a)-[r:%s]->(b)",
		m.From.Label, fromPattern, m.To.Label, toPattern, m.Type,
	)
	if len(m.Props) > 0 {
		params[paramPrefix+"p"] = m.Props
		q += fmt.Sprintf("\nON CREATE SET r += $%sp", paramPrefix)
	}
	return q, params, nil
}

// keyPatternClause renders `{k: $prefix_k, ...}` content with deterministic
// key order and registers the parameter values.
func keyPatternClause(key map[string]any, prefix string, params map[string]any) (string, error) {
	names := make([]string, 0, len(key))
	for k := range key {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if err := validateIdentifier(name); err != nil {
			return "", err
		}
		paramName := prefix + "_" + name
		params[paramName] = key[name]
		parts = append(parts, fmt.Sprintf("%s: $%s", name, paramName))
	}
	return strings.Join(parts, ", "), nil
}

// Labels, relationship types, and property names are spliced into cypher text
// (they cannot be parameters), so they are restricted to safe identifiers.
func validateIdentifier(s string) error {
	if s == "" {
		return domain.Errorf(domain.KindInvalidInput, "graph.identifier", "empty identifier")
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return domain.Errorf(domain.KindInvalidInput, "graph.identifier", "identifier %q starts with digit", s)
			}
		default:
			return domain.Errorf(domain.KindInvalidInput, "graph.identifier", "identifier %q contains %q", s, string(r))
		}
	}
	return nil
}

// MergeNode is the single-shot create-or-fetch. Returns the node properties
// as stored (existing nodes keep their properties).
func (s *Store) MergeNode(ctx context.Context, m NodeMerge) (map[string]any, error) {
	const op = "graph.merge_node"
	q, params, err := m.statement("m_")
	if err != nil {
		return nil, err
	}
	q += "\nRETURN properties(n) AS props"

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		props, _ := record.Get("props")
		return props, nil
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	props, _ := result.(map[string]any)
	return props, nil
}

// MergeEdge is the single-shot idempotent edge merge.
func (s *Store) MergeEdge(ctx context.Context, m EdgeMerge) (bool, error) {
	const op = "graph.merge_edge"
	q, params, err := m.statement("m_")
	if err != nil {
		return false, err
	}
	q += "\nRETURN count(r) AS merged"

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		merged, _ := record.Get("merged")
		return merged, nil
	})
	if err != nil {
		return false, classifyError(op, err)
	}
	n, _ := result.(int64)
	return n > 0, nil
}

// Apply runs a batch of mutations inside one write transaction, in order.
// The ingestion coordinator uses this to commit a chunk's whole subgraph
// atomically.
func (s *Store) Apply(ctx context.Context, mutations []Mutation) error {
	const op = "graph.apply"
	if len(mutations) == 0 {
		return nil
	}

	type compiled struct {
		query  string
		params map[string]any
	}
	stmts := make([]compiled, 0, len(mutations))
	for i, m := range mutations {
		q, params, err := m.statement(fmt.Sprintf("p%d_", i))
		if err != nil {
			return err
		}
		stmts = append(stmts, compiled{query: q, params: params})
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range stmts {
			res, err := tx.Run(ctx, stmt.query, stmt.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return classifyError(op, err)
}
