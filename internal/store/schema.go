package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    dataset TEXT,
    step INTEGER NOT NULL,
    allocator TEXT NOT NULL,
    mode TEXT,
    allocated INTEGER NOT NULL,
    total INTEGER NOT NULL,
    nodes_visited INTEGER,
    pruned INTEGER,
    duration_ns INTEGER,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
    run INTEGER NOT NULL,
    application_id TEXT NOT NULL,
    satellite_id TEXT NOT NULL,
    PRIMARY KEY (run, application_id),
    FOREIGN KEY (run) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
`
