package sqlitestore

import "time"

// These mirror store's domain types one-to-one; they exist only so
// AutoMigrate has something to derive a schema from. All reads/writes
// go through the raw SQL in sqlitestore.go, not gorm's query builder.

type artistRow struct {
	MBID string `gorm:"primaryKey;column:mbid"`
	Name string `gorm:"column:name"`
}

type releaseRow struct {
	MBID string `gorm:"primaryKey;column:mbid"`
	Name string `gorm:"column:name"`
}

type recordingRow struct {
	MBID string `gorm:"primaryKey;column:mbid"`
	Name string `gorm:"column:name"`
}

type playRow struct {
	URI             string `gorm:"primaryKey;column:uri"`
	CID             string `gorm:"column:cid"`
	DID             string `gorm:"column:did;index"`
	RKey            string `gorm:"column:rkey"`
	TrackName       string `gorm:"column:track_name"`
	ISRC            string `gorm:"column:isrc"`
	DurationMs      int64  `gorm:"column:duration_ms"`
	HasDuration     bool   `gorm:"column:has_duration"`
	ReleaseMBID     string `gorm:"column:release_mbid;index"`
	ReleaseName     string `gorm:"column:release_name"`
	RecordingMBID   string `gorm:"column:recording_mbid;index"`
	PlayedTime      time.Time
	ProcessedTime   time.Time `gorm:"column:processed_time"`
	SubmissionAgent string    `gorm:"column:submission_agent"`
	ServiceDomain   string    `gorm:"column:service_domain"`
}

type playArtistRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	PlayURI    string `gorm:"column:play_uri;index"`
	ArtistMBID string `gorm:"column:artist_mbid;index"`
	ArtistName string `gorm:"column:artist_name"`
}

type profileRow struct {
	DID               string `gorm:"primaryKey;column:did"`
	Handle            string `gorm:"column:handle"`
	DisplayName       string `gorm:"column:display_name"`
	Description       string `gorm:"column:description"`
	DescriptionFacets []byte `gorm:"column:description_facets"`
	AvatarRef         string `gorm:"column:avatar_ref"`
	BannerRef         string `gorm:"column:banner_ref"`
	CreatedAt         time.Time
}

type statusRow struct {
	URI       string `gorm:"primaryKey;column:uri"`
	CID       string `gorm:"column:cid"`
	DID       string `gorm:"column:did;index"`
	RKey      string `gorm:"column:rkey"`
	Record    []byte `gorm:"column:record"`
	IndexedAt time.Time
}
