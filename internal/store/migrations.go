package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mailing_lists (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL UNIQUE,
	list_id        TEXT NOT NULL DEFAULT '',
	display_name   TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	subject_prefix TEXT NOT NULL DEFAULT '',
	archive_policy INTEGER NOT NULL DEFAULT 2 CHECK(archive_policy IN (0, 1, 2)),
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS senders (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	address    TEXT NOT NULL UNIQUE,
	mailman_id TEXT
);

CREATE TABLE IF NOT EXISTS threads (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	mailinglist_id    INTEGER NOT NULL REFERENCES mailing_lists(id) ON DELETE CASCADE,
	thread_id         TEXT NOT NULL,
	date_active       DATETIME NOT NULL,
	category_id       INTEGER,
	starting_email_id INTEGER REFERENCES emails(id) ON DELETE SET NULL,
	UNIQUE(mailinglist_id, thread_id)
);

CREATE INDEX IF NOT EXISTS idx_threads_date_active ON threads(mailinglist_id, date_active);

-- parent_id is a weak link: it is never enforced by a foreign key so that
-- re-parenting and deletion can rewire it freely.
CREATE TABLE IF NOT EXISTS emails (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	mailinglist_id  INTEGER NOT NULL REFERENCES mailing_lists(id) ON DELETE CASCADE,
	message_id      TEXT NOT NULL,
	message_id_hash TEXT NOT NULL,
	sender_id       INTEGER NOT NULL REFERENCES senders(id),
	sender_name     TEXT NOT NULL DEFAULT '',
	subject         TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL DEFAULT '',
	in_reply_to     TEXT,
	parent_id       INTEGER,
	thread_id       INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	date            DATETIME NOT NULL,
	timezone        INTEGER NOT NULL DEFAULT 0,
	archived_date   DATETIME NOT NULL,
	thread_order    INTEGER,
	thread_depth    INTEGER NOT NULL DEFAULT 0,
	UNIQUE(mailinglist_id, message_id)
);

-- At most one parentless email per thread.
CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_thread_root
	ON emails(thread_id) WHERE parent_id IS NULL;

CREATE INDEX IF NOT EXISTS idx_emails_thread ON emails(thread_id, thread_order);
CREATE INDEX IF NOT EXISTS idx_emails_parent ON emails(parent_id);
CREATE INDEX IF NOT EXISTS idx_emails_in_reply_to ON emails(mailinglist_id, in_reply_to);
CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(mailinglist_id, date);
CREATE INDEX IF NOT EXISTS idx_emails_hash ON emails(mailinglist_id, message_id_hash);

CREATE TABLE IF NOT EXISTS attachments (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id     INTEGER NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
	counter      INTEGER NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	encoding     TEXT,
	size         INTEGER NOT NULL DEFAULT 0,
	content      BLOB,
	UNIQUE(email_id, counter)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS votes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id   INTEGER NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	value      INTEGER NOT NULL CHECK(value IN (-1, 1)),
	created_at DATETIME NOT NULL,
	UNIQUE(email_id, user_id)
);

CREATE TABLE IF NOT EXISTS thread_categories (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS favorites (
	thread_id  INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (thread_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_email ON votes(email_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS leases (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS index_queue (
	email_id  INTEGER PRIMARY KEY,
	list_name TEXT NOT NULL,
	action    TEXT NOT NULL CHECK(action IN ('update', 'remove')),
	queued_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
