package jobstore

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id                TEXT PRIMARY KEY,
    owner_id          INTEGER NOT NULL,
    chat_id           INTEGER NOT NULL,
    url               TEXT NOT NULL,
    video_id          TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    delivery_kind     TEXT NOT NULL DEFAULT '',
    chosen_format_id  TEXT NOT NULL DEFAULT '',
    catalog_json      TEXT NOT NULL DEFAULT '',
    selection_msg_id  INTEGER NOT NULL DEFAULT 0,
    progress_phase    TEXT NOT NULL DEFAULT '',
    progress_percent  REAL NOT NULL DEFAULT 0,
    progress_message  TEXT NOT NULL DEFAULT '',
    workspace_path    TEXT NOT NULL DEFAULT '',
    output_path       TEXT NOT NULL DEFAULT '',
    error_message     TEXT NOT NULL DEFAULT '',
    cancel_requested  INTEGER NOT NULL DEFAULT 0,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_owner_status ON jobs(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`
