package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// PGGateway serves lineage stored in PostgreSQL tables (see EnsureSchema).
// Relationship pages are keyset-paginated on the relationship sequence.
type PGGateway struct {
	pool     *pgxpool.Pool
	pageSize int
}

// NewPGGateway connects to databaseURL and verifies the connection.
func NewPGGateway(ctx context.Context, databaseURL string) (*PGGateway, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &PGGateway{pool: pool, pageSize: 200}, nil
}

// SetPageSize changes how many relationships a page holds.
func (g *PGGateway) SetPageSize(n int) {
	if n > 0 {
		g.pageSize = n
	}
}

// Ping checks database connectivity.
func (g *PGGateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// Close closes the connection pool.
func (g *PGGateway) Close() {
	g.pool.Close()
}

// FetchEntity implements Gateway.
func (g *PGGateway) FetchEntity(ctx context.Context, id lineage.NodeID) (*lineage.Node, error) {
	query := `
		SELECT id, type_name, display_name, attributes
		FROM lineage_entities
		WHERE id = $1
	`

	var (
		node      lineage.Node
		rawID     string
		attrsJSON []byte
	)
	err := g.pool.QueryRow(ctx, query, string(id)).Scan(&rawID, &node.TypeName, &node.DisplayName, &attrsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lineage.NewError("FetchEntity", id, lineage.ErrNotFound)
	}
	if err != nil {
		return nil, lineage.NewError("FetchEntity", id, classifyPGError(ctx, err))
	}
	node.ID = lineage.NodeID(rawID)

	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &node.Attributes); err != nil {
			return nil, lineage.NewError("FetchEntity", id, fmt.Errorf("failed to unmarshal attributes: %w", err))
		}
	}
	return &node, nil
}

// FetchRelationships implements Gateway. The cursor is the sequence number of
// the last relationship on the previous page.
func (g *PGGateway) FetchRelationships(ctx context.Context, id lineage.NodeID, dir lineage.Direction, cursor string) (*RelationshipPage, error) {
	var column string
	switch dir {
	case lineage.Downstream:
		column = "source_id"
	case lineage.Upstream:
		column = "target_id"
	default:
		return nil, fmt.Errorf("FetchRelationships: unsupported direction %s", dir)
	}

	var after int64
	if cursor != "" {
		var err error
		after, err = strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, lineage.NewError("FetchRelationships", id, fmt.Errorf("invalid cursor %q", cursor))
		}
	}

	// column is one of two constants above.
	query := `
		SELECT seq, source_id, target_id, relationship_type, confidence
		FROM lineage_relationships
		WHERE ` + column + ` = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3
	`

	// One extra row tells us whether another page exists.
	rows, err := g.pool.Query(ctx, query, string(id), after, g.pageSize+1)
	if err != nil {
		return nil, lineage.NewError("FetchRelationships", id, classifyPGError(ctx, err))
	}
	defer rows.Close()

	page := &RelationshipPage{}
	var lastSeq int64
	for rows.Next() {
		if len(page.Edges) == g.pageSize {
			page.NextCursor = strconv.FormatInt(lastSeq, 10)
			break
		}
		var (
			seq            int64
			source, target string
			edge           RawEdge
		)
		if err := rows.Scan(&seq, &source, &target, &edge.RelationshipType, &edge.Confidence); err != nil {
			return nil, lineage.NewError("FetchRelationships", id, fmt.Errorf("failed to scan relationship: %w", err))
		}
		edge.Source = lineage.NodeID(source)
		edge.Target = lineage.NodeID(target)
		page.Edges = append(page.Edges, edge)
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return nil, lineage.NewError("FetchRelationships", id, classifyPGError(ctx, err))
	}
	return page, nil
}

// UpsertEntity stores or replaces an entity.
func (g *PGGateway) UpsertEntity(ctx context.Context, n lineage.Node) error {
	attrsJSON, err := json.Marshal(n.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `
		INSERT INTO lineage_entities (id, type_name, display_name, attributes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET type_name = EXCLUDED.type_name,
		    display_name = EXCLUDED.display_name,
		    attributes = EXCLUDED.attributes
	`
	if _, err := g.pool.Exec(ctx, query, string(n.ID), n.TypeName, n.DisplayName, attrsJSON); err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", n.ID, err)
	}
	return nil
}

// InsertRelationship appends a relationship.
func (g *PGGateway) InsertRelationship(ctx context.Context, e RawEdge) error {
	query := `
		INSERT INTO lineage_relationships (source_id, target_id, relationship_type, confidence)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := g.pool.Exec(ctx, query, string(e.Source), string(e.Target), e.RelationshipType, e.Confidence); err != nil {
		return fmt.Errorf("failed to insert relationship %s->%s: %w", e.Source, e.Target, err)
	}
	return nil
}

// Seed loads a fixture into the tables.
func (g *PGGateway) Seed(ctx context.Context, f *Fixture) error {
	for _, e := range f.Entities {
		if err := g.UpsertEntity(ctx, e); err != nil {
			return err
		}
	}
	for _, r := range f.Relationships {
		if err := g.InsertRelationship(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func classifyPGError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return Transient(err)
}
