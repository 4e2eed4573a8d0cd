package postgres

// schemaDDL creates the five entity tables and the two association tables.
// Every statement is idempotent so Migrate can run on every boot.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS datasource (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    schema_json        JSONB,
    active_snapshot_id TEXT,
    created_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot (
    id            TEXT PRIMARY KEY,
    datasource_id TEXT NOT NULL REFERENCES datasource(id),
    path          TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshot_datasource_idx ON snapshot (datasource_id, created_at);

CREATE TABLE IF NOT EXISTS preprocess (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    steps_json          JSONB NOT NULL,
    datasource_child_id TEXT NOT NULL REFERENCES datasource(id),
    created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS preprocess_child_idx ON preprocess (datasource_child_id);

CREATE TABLE IF NOT EXISTS preprocess_parents (
    preprocess_id TEXT NOT NULL REFERENCES preprocess(id),
    datasource_id TEXT NOT NULL REFERENCES datasource(id),
    position      INT  NOT NULL,
    PRIMARY KEY (preprocess_id, datasource_id)
);

CREATE TABLE IF NOT EXISTS executed_preprocess (
    id                 TEXT PRIMARY KEY,
    preprocess_id      TEXT NOT NULL REFERENCES preprocess(id),
    output_snapshot_id TEXT NOT NULL REFERENCES snapshot(id),
    details_json       JSONB,
    created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS executed_preprocess_pp_idx ON executed_preprocess (preprocess_id, created_at);
CREATE INDEX IF NOT EXISTS executed_preprocess_out_idx ON executed_preprocess (output_snapshot_id);

CREATE TABLE IF NOT EXISTS execution_snapshots (
    executed_preprocess_id TEXT NOT NULL REFERENCES executed_preprocess(id),
    snapshot_id            TEXT NOT NULL REFERENCES snapshot(id),
    position               INT  NOT NULL,
    PRIMARY KEY (executed_preprocess_id, snapshot_id)
);

CREATE TABLE IF NOT EXISTS training (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    datasource_id       TEXT NOT NULL REFERENCES datasource(id),
    automation_enabled  BOOLEAN NOT NULL DEFAULT FALSE,
    automation_schedule TEXT,
    created_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS training_execution (
    id          TEXT PRIMARY KEY,
    training_id TEXT NOT NULL REFERENCES training(id),
    snapshot_id TEXT,
    status      TEXT NOT NULL,
    error       TEXT,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS training_execution_tr_idx ON training_execution (training_id, started_at);
`
