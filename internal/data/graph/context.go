package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

// Participant is a user reachable from a session or project scope.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

type SessionSummary struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
}

type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

// ProjectContext is the relational surround of a project: its sessions, its
// documents (direct or attached to its sessions), and the participants
// derived transitively through the sessions.
type ProjectContext struct {
	ProjectID string            `json:"project_id"`
	Sessions  []SessionSummary  `json:"sessions"`
	Documents []DocumentSummary `json:"documents"`
	Users     []Participant     `json:"users"`
}

// SessionParticipants returns the users with a PARTICIPATED_IN edge to the
// session, ordered by user id for stable fan-out.
func (s *Store) SessionParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	const op = "graph.session_participants"
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (u:User)-[:PARTICIPATED_IN]->(s:Session {session_id: $session_id})
RETURN u.user_id AS user_id, coalesce(u.name, '') AS name
ORDER BY user_id
`, map[string]any{"session_id": sessionID})
		if err != nil {
			return nil, err
		}
		var out []Participant
		for res.Next(ctx) {
			record := res.Record()
			uid, _ := record.Get("user_id")
			name, _ := record.Get("name")
			if recString(uid) == "" {
				continue
			}
			out = append(out, Participant{UserID: recString(uid), Name: recString(name)})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	return result.([]Participant), nil
}

// ProjectParticipants is the transitive flavor used by group retrieval with a
// project scope: every user participating in any of the project's sessions.
func (s *Store) ProjectParticipants(ctx context.Context, projectID string) ([]Participant, error) {
	const op = "graph.project_participants"
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (u:User)-[:PARTICIPATED_IN]->(:Session)-[:PART_OF]->(p:Project {project_id: $project_id})
RETURN DISTINCT u.user_id AS user_id, coalesce(u.name, '') AS name
ORDER BY user_id
`, map[string]any{"project_id": projectID})
		if err != nil {
			return nil, err
		}
		var out []Participant
		for res.Next(ctx) {
			record := res.Record()
			uid, _ := record.Get("user_id")
			name, _ := record.Get("name")
			if recString(uid) == "" {
				continue
			}
			out = append(out, Participant{UserID: recString(uid), Name: recString(name)})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	return result.([]Participant), nil
}

// ProjectContextFor collects the distinct sessions, documents, and users of a
// project in one read transaction.
func (s *Store) ProjectContextFor(ctx context.Context, projectID string) (*ProjectContext, error) {
	const op = "graph.project_context"
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Project {project_id: $project_id})
OPTIONAL MATCH (s:Session)-[:PART_OF]->(p)
OPTIONAL MATCH (dp:Document)-[:PART_OF]->(p)
OPTIONAL MATCH (ds:Document)-[:ATTACHED_TO]->(s)
OPTIONAL MATCH (u:User)-[:PARTICIPATED_IN]->(s)
RETURN
  collect(DISTINCT {session_id: s.session_id, name: coalesce(s.name, '')}) AS sessions,
  collect(DISTINCT {document_id: dp.document_id, name: coalesce(dp.name, ''), source_type: coalesce(dp.source_type, '')}) +
  collect(DISTINCT {document_id: ds.document_id, name: coalesce(ds.name, ''), source_type: coalesce(ds.source_type, '')}) AS documents,
  collect(DISTINCT {user_id: u.user_id, name: coalesce(u.name, '')}) AS users
`, map[string]any{"project_id": projectID})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, domain.Errorf(domain.KindNotFound, op, "project %s not found", projectID)
		}
		record := res.Record()

		pc := &ProjectContext{ProjectID: projectID}
		rawSessions, _ := record.Get("sessions")
		for _, m := range recMaps(rawSessions) {
			id := recString(m["session_id"])
			if id == "" {
				continue
			}
			pc.Sessions = append(pc.Sessions, SessionSummary{SessionID: id, Name: recString(m["name"])})
		}
		rawDocs, _ := record.Get("documents")
		seenDocs := map[string]struct{}{}
		for _, m := range recMaps(rawDocs) {
			id := recString(m["document_id"])
			if id == "" {
				continue
			}
			if _, dup := seenDocs[id]; dup {
				continue
			}
			seenDocs[id] = struct{}{}
			pc.Documents = append(pc.Documents, DocumentSummary{
				DocumentID: id,
				Name:       recString(m["name"]),
				SourceType: recString(m["source_type"]),
			})
		}
		rawUsers, _ := record.Get("users")
		for _, m := range recMaps(rawUsers) {
			id := recString(m["user_id"])
			if id == "" {
				continue
			}
			pc.Users = append(pc.Users, Participant{UserID: id, Name: recString(m["name"])})
		}
		return pc, nil
	})
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, err
		}
		return nil, classifyError(op, err)
	}
	return result.(*ProjectContext), nil
}
