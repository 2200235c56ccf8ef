package pgxstore

// schema bootstraps the tenant tables on first connect. SQL migration
// tooling is out of scope (spec §1's external-collaborators list); this
// mirrors the teacher's own inline-schema-on-connect approach for a
// single-tenant deployment.
const schema = `
CREATE TABLE IF NOT EXISTS artists (
	mbid TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS releases (
	mbid TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recordings (
	mbid TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plays (
	uri TEXT PRIMARY KEY,
	cid TEXT NOT NULL,
	did TEXT NOT NULL,
	rkey TEXT NOT NULL,
	track_name TEXT NOT NULL,
	isrc TEXT,
	duration_ms BIGINT,
	has_duration BOOLEAN NOT NULL DEFAULT FALSE,
	release_mbid TEXT REFERENCES releases(mbid),
	release_name TEXT,
	recording_mbid TEXT REFERENCES recordings(mbid),
	played_time TIMESTAMPTZ NOT NULL,
	processed_time TIMESTAMPTZ NOT NULL,
	submission_agent TEXT,
	service_domain TEXT
);

CREATE INDEX IF NOT EXISTS idx_plays_did ON plays(did);

CREATE TABLE IF NOT EXISTS play_to_artists (
	play_uri TEXT NOT NULL REFERENCES plays(uri) ON DELETE CASCADE,
	artist_mbid TEXT NOT NULL REFERENCES artists(mbid),
	artist_name TEXT NOT NULL,
	PRIMARY KEY (play_uri, artist_mbid)
);

CREATE TABLE IF NOT EXISTS profiles (
	did TEXT PRIMARY KEY,
	handle TEXT,
	display_name TEXT,
	description TEXT,
	description_facets JSONB,
	avatar_ref TEXT,
	banner_ref TEXT,
	created_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS statuses (
	uri TEXT PRIMARY KEY,
	cid TEXT NOT NULL,
	did TEXT NOT NULL,
	rkey TEXT NOT NULL,
	record JSONB NOT NULL,
	indexed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_statuses_did ON statuses(did);
`
