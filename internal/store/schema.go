package store

// CacheSchemaVersion participates in every revision_cache key. Bumping it
// invalidates all memoized resolutions at once without touching rows.
const CacheSchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS revision_cache (
    package TEXT NOT NULL,
    installed_version TEXT NOT NULL,
    catalog_head TEXT NOT NULL,
    lag_offset INTEGER NOT NULL,
    schema_version INTEGER NOT NULL,
    version_label TEXT NOT NULL,
    revision_handle TEXT NOT NULL,
    definition_path TEXT NOT NULL,
    commit_time INTEGER NOT NULL,
    shallow BOOLEAN NOT NULL,
    PRIMARY KEY (package, installed_version, catalog_head, lag_offset, schema_version)
);

CREATE TABLE IF NOT EXISTS exceptions (
    name TEXT PRIMARY KEY,
    added_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS resolved_entries (
    package TEXT PRIMARY KEY,
    installed_version TEXT NOT NULL,
    version_label TEXT NOT NULL,
    revision_handle TEXT NOT NULL,
    definition_path TEXT NOT NULL,
    final_time INTEGER NOT NULL,
    moved BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS change_set (
    position INTEGER PRIMARY KEY,
    package TEXT NOT NULL,
    action TEXT NOT NULL,
    target_label TEXT NOT NULL,
    revision_handle TEXT NOT NULL,
    definition_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plan_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    catalog_head TEXT NOT NULL,
    lag_offset INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    stale BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_package ON revision_cache(package);
CREATE INDEX IF NOT EXISTS idx_changes_package ON change_set(package);
`
