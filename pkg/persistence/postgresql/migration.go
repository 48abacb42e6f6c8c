package postgresql

// migrations returns the schema migrations keyed by ascending version.
// Definitions and instances are stored whole as JSONB; the relational columns
// exist only for lookup and filtering.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				name TEXT NOT NULL,
				version INTEGER NOT NULL,
				payload JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (name, version)
			);

			CREATE TABLE IF NOT EXISTS workflow_instances (
				id TEXT PRIMARY KEY,
				workflow_name TEXT NOT NULL,
				workflow_version INTEGER NOT NULL,
				status TEXT NOT NULL,
				payload JSONB NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_instances_status
				ON workflow_instances (status);

			CREATE INDEX IF NOT EXISTS idx_workflow_instances_workflow
				ON workflow_instances (workflow_name, workflow_version);
		`,
	}
}
