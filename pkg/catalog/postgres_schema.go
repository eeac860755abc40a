package catalog

import "context"

// EnsureSchema creates the lineage tables if they don't exist.
func (g *PGGateway) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS lineage_entities (
		id TEXT PRIMARY KEY,
		type_name TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		attributes JSONB
	);

	CREATE TABLE IF NOT EXISTS lineage_relationships (
		seq BIGSERIAL PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		confidence DOUBLE PRECISION
	);

	CREATE INDEX IF NOT EXISTS idx_lineage_rel_source ON lineage_relationships(source_id, seq);
	CREATE INDEX IF NOT EXISTS idx_lineage_rel_target ON lineage_relationships(target_id, seq);
	`

	_, err := g.pool.Exec(ctx, schema)
	return err
}

// Truncate removes all lineage rows. Intended for test setup.
func (g *PGGateway) Truncate(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, `TRUNCATE lineage_relationships, lineage_entities RESTART IDENTITY`)
	return err
}
