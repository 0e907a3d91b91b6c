package types

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoPoint is a WGS84 coordinate persisted as a PostGIS geography point.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies inside the WGS84 bounds.
func (g GeoPoint) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}

// Value produces an EWKT literal so Postgres can cast the geography.
func (g GeoPoint) Value() (driver.Value, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("geo point: out of range (%f, %f)", g.Lat, g.Lng)
	}
	return fmt.Sprintf("SRID=4326;POINT(%s %s)",
		strconv.FormatFloat(g.Lng, 'f', -1, 64),
		strconv.FormatFloat(g.Lat, 'f', -1, 64),
	), nil
}

// Scan accepts WKT/EWKT text or the WKB bytes Postgres returns.
func (g *GeoPoint) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*g = GeoPoint{}
		return nil
	case string:
		return g.fromText(v)
	case []byte:
		text := strings.ToUpper(strings.TrimSpace(string(v)))
		if strings.HasPrefix(text, "SRID=") || strings.HasPrefix(text, "POINT(") {
			return g.fromText(string(v))
		}
		return g.fromWKB(v)
	default:
		return fmt.Errorf("geo point: unsupported scan type %T", value)
	}
}

func (g *GeoPoint) fromText(raw string) error {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, ";"); idx != -1 && strings.HasPrefix(strings.ToUpper(raw), "SRID=") {
		raw = strings.TrimSpace(raw[idx+1:])
	}
	if !strings.HasPrefix(strings.ToUpper(raw), "POINT(") || !strings.HasSuffix(raw, ")") {
		return fmt.Errorf("geo point: unsupported text %q", raw)
	}

	coords := strings.Fields(raw[len("POINT(") : len(raw)-1])
	if len(coords) != 2 {
		return fmt.Errorf("geo point: unexpected POINT content %q", raw)
	}
	lng, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return fmt.Errorf("geo point: parse lng: %w", err)
	}
	lat, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return fmt.Errorf("geo point: parse lat: %w", err)
	}
	g.Lat, g.Lng = lat, lng
	return nil
}

// fromWKB decodes a plain or EWKB point (an SRID flag adds 4 bytes).
func (g *GeoPoint) fromWKB(raw []byte) error {
	if len(raw) < 21 {
		return fmt.Errorf("geo point: wkb too short")
	}

	var order binary.ByteOrder
	switch raw[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return fmt.Errorf("geo point: invalid byte order %d", raw[0])
	}

	geomType := order.Uint32(raw[1:5])
	offset := 5
	if geomType&0x20000000 != 0 {
		offset += 4
	}
	if geomType&0xFF != 1 {
		return fmt.Errorf("geo point: unexpected geometry type %d", geomType)
	}
	if len(raw) < offset+16 {
		return fmt.Errorf("geo point: wkb too short")
	}

	g.Lng = math.Float64frombits(order.Uint64(raw[offset : offset+8]))
	g.Lat = math.Float64frombits(order.Uint64(raw[offset+8 : offset+16]))
	return nil
}

// GormDataType lets AutoMigrate declare the column as a geography.
func (GeoPoint) GormDataType() string {
	return "geography"
}
