package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// MaxMindResolver resolves client IPs to country names using a MaxMind
// GeoLite2 Country database.
type MaxMindResolver struct {
	reader *maxminddb.Reader
}

// NewMaxMindResolver opens the GeoIP database at dbPath.
func NewMaxMindResolver(dbPath string) (*MaxMindResolver, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

type countryRecord struct {
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
}

// Country returns the country name for an IP, or "" when the IP is
// invalid or unknown. Enrichment is best effort; lookup failures never
// block ingestion.
func (m *MaxMindResolver) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	var record countryRecord
	if err := m.reader.Lookup(parsed, &record); err != nil {
		return ""
	}

	if name := record.Country.Names["en"]; name != "" {
		return name
	}
	return record.Country.ISOCode
}

// Close closes the GeoIP database.
func (m *MaxMindResolver) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}
