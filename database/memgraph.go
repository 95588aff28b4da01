package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pictura/pictura/model"
)

// Graph is the production DocumentStore, backed by a
// neo4j-compatible graph database. Posts and users are nodes;
// like and save memberships are edges, so adding or removing
// one is a single atomic graph write and never a
// read-modify-write of the whole set
type Graph struct {
	session neo4j.SessionWithContext
}

// InitGraph creates the graph connection from environment
func InitGraph(ctx context.Context) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(os.Getenv("GRAPH_URL"),
		neo4j.BasicAuth(os.Getenv("GRAPH_USERNAME"), os.Getenv("GRAPH_PASSWORD"), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}

	return &Graph{
		session: driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite}),
	}, nil
}

// run is a simple way to send a query and read back its rows
func (g *Graph) run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	rows, err := g.session.ExecuteWrite(ctx, func(transaction neo4j.ManagedTransaction) (any, error) {
		result, err := transaction.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}

	return rows.([]*neo4j.Record), nil
}

// Query returns documents sorted by created_at descending,
// ties broken by ID descending
func (g *Graph) Query(ctx context.Context, q Query) ([]Document, error) {
	if q.Collection == Users {
		return g.queryUsers(ctx, q)
	}

	params := map[string]any{
		"after":    int64(math.MaxInt64),
		"after_id": "",
	}
	if !q.StartAfterTime.IsZero() {
		params["after"] = q.StartAfterTime.UnixMilli()
		params["after_id"] = q.StartAfterId
	}

	match := "MATCH (p:Post)"
	where := "WHERE p.created_at < $after OR (p.created_at = $after AND p.id < $after_id)"
	if q.Filter != nil {
		switch {
		case q.Filter.Field == "userId" && q.Filter.Op == OpEquals:
			params["uid"] = q.Filter.Value
			where = "WHERE p.user_id = $uid AND (p.created_at < $after OR (p.created_at = $after AND p.id < $after_id))"
		case q.Filter.Field == "saves" && q.Filter.Op == OpArrayContains:
			params["uid"] = q.Filter.Value
			match = "MATCH (:User {id: $uid})-[:SAVED]->(p:Post)"
		default:
			return nil, fmt.Errorf("unsupported post filter %s %s: %w", q.Filter.Field, q.Filter.Op, model.ErrValidation)
		}
	}

	query := match + " " + where +
		" OPTIONAL MATCH (l:User)-[:LIKES]->(p) WITH p, collect(DISTINCT l.id) AS likes" +
		" OPTIONAL MATCH (s:User)-[:SAVED]->(p) WITH p, likes, collect(DISTINCT s.id) AS saves" +
		" RETURN p, likes, saves ORDER BY p.created_at DESC, p.id DESC"
	if q.Limit > 0 {
		params["limit"] = q.Limit
		query += " LIMIT $limit"
	}
	query += ";"

	rows, err := g.run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := postDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (g *Graph) queryUsers(ctx context.Context, q Query) ([]Document, error) {
	where := ""
	params := map[string]any{}
	if q.Filter != nil {
		if q.Filter.Op != OpEquals {
			return nil, fmt.Errorf("unsupported user filter %s: %w", q.Filter.Op, model.ErrValidation)
		}
		params["value"] = q.Filter.Value
		where = "WHERE u." + userProp(q.Filter.Field) + " = $value "
	}

	query := "MATCH (u:User) " + where + "RETURN u ORDER BY u.created_at DESC, u.id DESC"
	if q.Limit > 0 {
		params["limit"] = q.Limit
		query += " LIMIT $limit"
	}
	query += ";"

	rows, err := g.run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		node, ok := row.Values[0].(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("bad user row: %w", model.ErrValidation)
		}
		docs = append(docs, userDocument(node))
	}

	return docs, nil
}

// Get returns one document by ID
func (g *Graph) Get(ctx context.Context, collection string, id string) (Document, error) {
	if collection == Users {
		rows, err := g.run(ctx, "MATCH (u:User {id: $id}) RETURN u;", map[string]any{"id": id})
		if err != nil {
			return Document{}, err
		}
		if len(rows) == 0 {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
		}
		node, ok := rows[0].Values[0].(neo4j.Node)
		if !ok {
			return Document{}, fmt.Errorf("bad user row: %w", model.ErrValidation)
		}
		return userDocument(node), nil
	}

	rows, err := g.run(ctx,
		"MATCH (p:Post {id: $id})"+
			" OPTIONAL MATCH (l:User)-[:LIKES]->(p) WITH p, collect(DISTINCT l.id) AS likes"+
			" OPTIONAL MATCH (s:User)-[:SAVED]->(p) WITH p, likes, collect(DISTINCT s.id) AS saves"+
			" RETURN p, likes, saves;",
		map[string]any{"id": id})
	if err != nil {
		return Document{}, err
	}
	if len(rows) == 0 {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}

	return postDocument(rows[0])
}

// Set writes a whole document as node properties
func (g *Graph) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	var query string
	var props map[string]any
	if collection == Users {
		query = "MERGE (u:User {id: $id}) SET u += $props, u.rev = coalesce(u.rev, 0) + 1;"
		props = userProps(data)
	} else {
		query = "MERGE (p:Post {id: $id}) SET p += $props, p.rev = coalesce(p.rev, 0) + 1;"
		var err error
		props, err = postProps(data)
		if err != nil {
			return err
		}
	}

	_, err := g.run(ctx, query, map[string]any{"id": id, "props": props})
	return err
}

// UpdateFields applies partial updates. Set memberships become
// edge writes; the comments list falls back to a
// revision-checked replace loop, since a nested list cannot
// live in node properties
func (g *Graph) UpdateFields(ctx context.Context, collection string, id string, ops []FieldOp) error {
	for _, op := range ops {
		if err := g.updateField(ctx, collection, id, op); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) updateField(ctx context.Context, collection string, id string, op FieldOp) error {
	switch {
	case op.Field == "likes" || op.Field == "saves":
		rel := "LIKES"
		if op.Field == "saves" {
			rel = "SAVED"
		}
		user, ok := op.Value.(string)
		if !ok {
			return fmt.Errorf("bad %s member: %w", op.Field, model.ErrValidation)
		}
		if op.Kind == OpArrayUnion {
			_, err := g.run(ctx,
				"MATCH (p:Post {id: $id}) MERGE (u:User {id: $user}) MERGE (u)-[:"+rel+"]->(p);",
				map[string]any{"id": id, "user": user})
			return err
		}
		_, err := g.run(ctx,
			"MATCH (:User {id: $user})-[r:"+rel+"]->(:Post {id: $id}) DELETE r;",
			map[string]any{"id": id, "user": user})
		return err

	case op.Field == "comments":
		// No atomic list append on node properties; a bounded
		// revision-checked replace loop takes its place
		return appendListField(ctx, g, collection, id, "comments", op.Value)

	case op.Kind == OpSet:
		label := "Post"
		prop := op.Field
		if collection == Users {
			label = "User"
			prop = userProp(op.Field)
		}
		_, err := g.run(ctx,
			"MATCH (n:"+label+" {id: $id}) SET n."+prop+" = $value, n.rev = n.rev + 1;",
			map[string]any{"id": id, "value": op.Value})
		return err

	case op.Kind == OpIncrement:
		label := "Post"
		if collection == Users {
			label = "User"
		}
		_, err := g.run(ctx,
			"MATCH (n:"+label+" {id: $id}) SET n."+op.Field+" = coalesce(n."+op.Field+", 0) + $delta;",
			map[string]any{"id": id, "delta": op.Value})
		return err

	default:
		return fmt.Errorf("unsupported field op on %s: %w", op.Field, model.ErrValidation)
	}
}

// CheckAndSetField replaces one field only when the node
// revision still matches
func (g *Graph) CheckAndSetField(ctx context.Context, collection string, id string, field string, value any, rev int64) error {
	label := "Post"
	prop := field
	if collection == Users {
		label = "User"
		prop = userProp(field)
	}

	if field == "comments" {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("bad comments value: %w", model.ErrValidation)
		}
		value = string(encoded)
	}

	rows, err := g.run(ctx,
		"MATCH (n:"+label+" {id: $id}) WHERE n.rev = $rev SET n."+prop+" = $value, n.rev = n.rev + 1 RETURN n.id;",
		map[string]any{"id": id, "rev": rev, "value": value})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrConflict
	}

	return nil
}

// Delete removes a document and every edge pointing at it
func (g *Graph) Delete(ctx context.Context, collection string, id string) error {
	label := "Post"
	if collection == Users {
		label = "User"
	}

	_, err := g.run(ctx, "MATCH (n:"+label+" {id: $id}) DETACH DELETE n;", map[string]any{"id": id})
	return err
}

// postDocument decodes a (p, likes, saves) row into document
// fields
func postDocument(row *neo4j.Record) (Document, error) {
	node, ok := row.Values[0].(neo4j.Node)
	if !ok {
		return Document{}, fmt.Errorf("bad post row: %w", model.ErrValidation)
	}

	var comments []any
	if raw, ok := node.Props["comments"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			return Document{}, fmt.Errorf("post %v: bad comments: %w", node.Props["id"], model.ErrValidation)
		}
	}

	rev, _ := node.Props["rev"].(int64)
	id, _ := node.Props["id"].(string)

	return Document{
		Id:  id,
		Rev: rev,
		Data: map[string]any{
			"userId":      node.Props["user_id"],
			"imageUrl":    node.Props["image_url"],
			"imageBase64": node.Props["image_base64"],
			"caption":     node.Props["caption"],
			"createdAt":   node.Props["created_at"],
			"likes":       row.Values[1],
			"saves":       row.Values[2],
			"comments":    comments,
			"fileName":    node.Props["file_name"],
			"fileType":    node.Props["file_type"],
		},
	}, nil
}

func userDocument(node neo4j.Node) Document {
	rev, _ := node.Props["rev"].(int64)
	id, _ := node.Props["id"].(string)

	return Document{
		Id:  id,
		Rev: rev,
		Data: map[string]any{
			"uid":          id,
			"email":        node.Props["email"],
			"displayName":  node.Props["display_name"],
			"photoURL":     node.Props["photo_url"],
			"bio":          node.Props["bio"],
			"createdAt":    node.Props["created_at"],
			"passwordHash": node.Props["password_hash"],
		},
	}
}

// postProps flattens document fields into node properties.
// Comments are kept as one JSON property: the membership sets
// live on edges instead
func postProps(data map[string]any) (map[string]any, error) {
	t, ok := docTimeValue(data["createdAt"])
	if !ok {
		return nil, fmt.Errorf("post without createdAt: %w", model.ErrValidation)
	}

	comments, err := json.Marshal(anyList(data["comments"]))
	if err != nil {
		return nil, fmt.Errorf("bad comments field: %w", model.ErrValidation)
	}

	return map[string]any{
		"user_id":      data["userId"],
		"image_url":    data["imageUrl"],
		"image_base64": data["imageBase64"],
		"caption":      data["caption"],
		"created_at":   t,
		"comments":     string(comments),
		"file_name":    data["fileName"],
		"file_type":    data["fileType"],
	}, nil
}

func userProps(data map[string]any) map[string]any {
	props := map[string]any{
		"email":         data["email"],
		"display_name":  data["displayName"],
		"photo_url":     data["photoURL"],
		"bio":           data["bio"],
		"password_hash": data["passwordHash"],
	}
	if t, ok := docTimeValue(data["createdAt"]); ok {
		props["created_at"] = t
	}
	return props
}

// userProp maps a document field name to its node property
func userProp(field string) string {
	switch field {
	case "displayName":
		return "display_name"
	case "photoURL":
		return "photo_url"
	case "passwordHash":
		return "password_hash"
	default:
		return strings.ToLower(field)
	}
}

// docTimeValue converts a createdAt field to unix milliseconds
// for storage as a node property
func docTimeValue(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case time.Time:
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}
