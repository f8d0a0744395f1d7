package graph

import (
	"strings"
	"testing"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

func TestNodeMergeStatement(t *testing.T) {
	t.Parallel()
	m := NodeMerge{
		Label:    LabelChunk,
		Key:      map[string]any{"chunk_id": "c1"},
		OnCreate: map[string]any{"text": "hello"},
	}
	q, params, err := m.statement("p0_")
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if !strings.Contains(q, "MERGE (n:Chunk {chunk_id: $p0_k_chunk_id})") {
		t.Fatalf("merge clause wrong: %q", q)
	}
	if !strings.Contains(q, "ON CREATE SET n += $p0_oc") {
		t.Fatalf("on-create clause missing: %q", q)
	}
	if params["p0_k_chunk_id"] != "c1" {
		t.Fatalf("key param lost: %v", params)
	}
	if params["p0_oc"].(map[string]any)["text"] != "hello" {
		t.Fatalf("on-create param lost: %v", params)
	}
}

func TestNodeMergeNoOnCreateClauseWhenEmpty(t *testing.T) {
	t.Parallel()
	m := NodeMerge{Label: LabelUser, Key: map[string]any{"user_id": "u1"}}
	q, _, err := m.statement("p0_")
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if strings.Contains(q, "ON CREATE") {
		t.Fatalf("unexpected on-create clause: %q", q)
	}
}

func TestNodeMergeRequiresKey(t *testing.T) {
	t.Parallel()
	_, _, err := NodeMerge{Label: LabelUser}.statement("p0_")
	if !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestNodeMergeDeterministicKeyOrder(t *testing.T) {
	t.Parallel()
	m := NodeMerge{
		Label: LabelDocument,
		Key:   map[string]any{"b_key": 2, "a_key": 1, "c_key": 3},
	}
	first, _, err := m.statement("p0_")
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	for i := 0; i < 20; i++ {
		q, _, err := m.statement("p0_")
		if err != nil {
			t.Fatalf("statement: %v", err)
		}
		if q != first {
			t.Fatalf("statement not deterministic:\n%q\n%q", first, q)
		}
	}
	if strings.Index(first, "a_key") > strings.Index(first, "b_key") {
		t.Fatalf("keys not sorted: %q", first)
	}
}

func TestEdgeMergeStatement(t *testing.T) {
	t.Parallel()
	m := EdgeMerge{
		From: NodeRef{Label: LabelUser, Key: map[string]any{"user_id": "u1"}},
		To:   NodeRef{Label: LabelChunk, Key: map[string]any{"chunk_id": "c1"}},
		Type: RelCreated,
	}
	q, params, err := m.statement("p1_")
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	for _, want := range []string{
		"MERGE (a:User {user_id: $p1_f_user_id})",
		"MERGE (b:Chunk {chunk_id: $p1_t_chunk_id})",
		"MERGE (a)-[r:CREATED]->(b)",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("missing %q in:\n%q", want, q)
		}
	}
	if params["p1_f_user_id"] != "u1" || params["p1_t_chunk_id"] != "c1" {
		t.Fatalf("endpoint params lost: %v", params)
	}
}

func TestEdgeMergeRequiresEndpointKeys(t *testing.T) {
	t.Parallel()
	m := EdgeMerge{
		From: NodeRef{Label: LabelUser},
		To:   NodeRef{Label: LabelChunk, Key: map[string]any{"chunk_id": "c1"}},
		Type: RelCreated,
	}
	_, _, err := m.statement("p0_")
	if !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestValidateIdentifierRejectsInjection(t *testing.T) {
	t.Parallel()
	bad := []string{
		"",
		"User) DETACH DELETE (x",
		"Chunk`",
		"1Label",
		"has space",
		"semi;colon",
	}
	for _, s := range bad {
		if err := validateIdentifier(s); err == nil {
			t.Fatalf("identifier %q should be rejected", s)
		}
	}
	good := []string{"User", "STATES_PREFERENCE", "chunk_id", "Label9"}
	for _, s := range good {
		if err := validateIdentifier(s); err != nil {
			t.Fatalf("identifier %q should be accepted: %v", s, err)
		}
	}
}

func TestEdgeMergeRejectsBadRelType(t *testing.T) {
	t.Parallel()
	m := EdgeMerge{
		From: NodeRef{Label: LabelUser, Key: map[string]any{"user_id": "u1"}},
		To:   NodeRef{Label: LabelChunk, Key: map[string]any{"chunk_id": "c1"}},
		Type: "CREATED]->() DETACH DELETE (b",
	}
	if _, _, err := m.statement("p0_"); err == nil {
		t.Fatalf("malicious relationship type must be rejected")
	}
}
