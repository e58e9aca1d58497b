package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OSMObject is a cached snapshot of a fetched OSM element, keyed by
// (type, id, version) so every version a task has referenced stays available
// even after the element changes upstream.
type OSMObject struct {
	ID          int64
	OSMType     string // "node", "way", "relation"
	OSMID       int64
	Version     int
	ChangesetID *int64
	Tags        json.RawMessage
	Point       *Point
	FetchedAt   time.Time
}

// OSMObjectRepository persists fetched OSM element snapshots, the durable
// backstop behind internal/cache's in-memory OSM object cache.
type OSMObjectRepository struct {
	pool *pgxpool.Pool
}

func (r *OSMObjectRepository) Upsert(ctx context.Context, o OSMObject) error {
	sql := `INSERT INTO osm_objects (osm_type, osm_id, version, changeset_id, tags, lon, lat)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (osm_type, osm_id, version) DO UPDATE SET
			changeset_id=EXCLUDED.changeset_id, tags=EXCLUDED.tags, lon=EXCLUDED.lon, lat=EXCLUDED.lat`
	var lon, lat *float64
	if o.Point != nil {
		lon, lat = &o.Point.Lon, &o.Point.Lat
	}
	_, err := r.pool.Exec(ctx, sql, o.OSMType, o.OSMID, o.Version, o.ChangesetID, o.Tags, lon, lat)
	if err != nil {
		return fmt.Errorf("store: upsert osm object: %w", err)
	}
	return nil
}

func (r *OSMObjectRepository) Version(ctx context.Context, osmType string, osmID int64, version int) (OSMObject, bool, error) {
	const sql = `SELECT id, osm_type, osm_id, version, changeset_id, tags, lon, lat, fetched_at
		FROM osm_objects WHERE osm_type=$1 AND osm_id=$2 AND version=$3`
	o, err := r.scanRow(r.pool.QueryRow(ctx, sql, osmType, osmID, version))
	if err == pgx.ErrNoRows {
		return OSMObject{}, false, nil
	}
	if err != nil {
		return OSMObject{}, false, err
	}
	return o, true, nil
}

func (r *OSMObjectRepository) Latest(ctx context.Context, osmType string, osmID int64) (OSMObject, bool, error) {
	const sql = `SELECT id, osm_type, osm_id, version, changeset_id, tags, lon, lat, fetched_at
		FROM osm_objects WHERE osm_type=$1 AND osm_id=$2 ORDER BY version DESC LIMIT 1`
	o, err := r.scanRow(r.pool.QueryRow(ctx, sql, osmType, osmID))
	if err == pgx.ErrNoRows {
		return OSMObject{}, false, nil
	}
	if err != nil {
		return OSMObject{}, false, err
	}
	return o, true, nil
}

func (r *OSMObjectRepository) scanRow(row pgx.Row) (OSMObject, error) {
	var o OSMObject
	var lon, lat *float64
	if err := row.Scan(&o.ID, &o.OSMType, &o.OSMID, &o.Version, &o.ChangesetID, &o.Tags, &lon, &lat, &o.FetchedAt); err != nil {
		if err == pgx.ErrNoRows {
			return OSMObject{}, err
		}
		return OSMObject{}, fmt.Errorf("store: scan osm object: %w", err)
	}
	if lon != nil && lat != nil {
		o.Point = &Point{Lon: *lon, Lat: *lat}
	}
	return o, nil
}

// Prune deletes cached snapshots fetched before olderThan, leaving the
// newest version of each element untouched regardless of age.
func (r *OSMObjectRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	const sql = `DELETE FROM osm_objects o WHERE o.fetched_at < $1
		AND o.version < (SELECT max(o2.version) FROM osm_objects o2 WHERE o2.osm_type=o.osm_type AND o2.osm_id=o.osm_id)`
	tag, err := r.pool.Exec(ctx, sql, olderThan)
	if err != nil {
		return 0, fmt.Errorf("store: prune osm objects: %w", err)
	}
	return tag.RowsAffected(), nil
}
