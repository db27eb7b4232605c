package mas

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ctessum/geom"
	_ "github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"

	"github.com/nci/avhrr/worker"
)

// Catalog resolves scene references out of the metadata store. Query
// results are cached in memcache when a server is configured; a cache miss
// or a missing server just falls through to Postgres.
type Catalog struct {
	db *sql.DB
	mc *memcache.Client
}

func NewCatalog(dsn, memcacheURI string) (*Catalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: %v", err)
	}
	cat := &Catalog{db: db}
	if memcacheURI != "" {
		cat.mc = memcache.New(memcacheURI)
	}
	return cat, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func cacheKey(series string, start, end time.Time, area *geom.Bounds) string {
	raw := fmt.Sprintf("%s|%d|%d", series, start.Unix(), end.Unix())
	if area != nil {
		raw += fmt.Sprintf("|%g,%g,%g,%g", area.Min.X, area.Min.Y, area.Max.X, area.Max.Y)
	}
	buff := md5.Sum([]byte(raw))
	return hex.EncodeToString(buff[:])
}

// QueryEntries lists the scenes of a series acquired inside the time range,
// optionally restricted to those overlapping a geographic area, ordered by
// acquisition time.
func (c *Catalog) QueryEntries(series string, start, end time.Time, area *geom.Bounds) ([]worker.ImageRef, error) {
	var hash string
	if c.mc != nil {
		hash = cacheKey(series, start, end, area)
		if cached, err := c.mc.Get(hash); err == nil {
			var snap []*worker.FileImage
			if err := json.Unmarshal(cached.Value, &snap); err == nil {
				refs := make([]worker.ImageRef, len(snap))
				for i, s := range snap {
					refs[i] = s
				}
				return refs, nil
			}
		}
	}

	// The nullif() noise coerces Go's zero values for a missing area into
	// proper null arguments, turning the overlap test into a no-op.
	var minLon, minLat, maxLon, maxLat sql.NullFloat64
	if area != nil {
		minLon = sql.NullFloat64{Float64: area.Min.X, Valid: true}
		minLat = sql.NullFloat64{Float64: area.Min.Y, Valid: true}
		maxLon = sql.NullFloat64{Float64: area.Max.X, Valid: true}
		maxLat = sql.NullFloat64{Float64: area.Max.Y, Valid: true}
	}

	rows, err := c.db.Query(
		`select identifier, path
		   from scenes
		  where series = $1
		    and acquired >= $2
		    and acquired < $3
		    and ($4::float8 is null
		         or (min_lon <= $6 and max_lon >= $4
		         and min_lat <= $7 and max_lat >= $5))
		  order by acquired`,
		series, start, end, minLon, minLat, maxLon, maxLat,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: %v", err)
	}
	defer rows.Close()

	var snap []*worker.FileImage
	refs := []worker.ImageRef{}
	for rows.Next() {
		img := &worker.FileImage{}
		if err := rows.Scan(&img.ID, &img.Path); err != nil {
			return nil, fmt.Errorf("catalog: %v", err)
		}
		snap = append(snap, img)
		refs = append(refs, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: %v", err)
	}

	if c.mc != nil {
		if raw, err := json.Marshal(snap); err == nil {
			// don't care about errors; memcache may not necessarily retain this anyway
			c.mc.Set(&memcache.Item{Key: hash, Value: raw})
		}
	}
	return refs, nil
}
