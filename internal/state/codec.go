package state

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support

	"github.com/commonprotocol/vault/internal/utils"
)

// intString renders an amount for storage; nil amounts are stored as zero.
func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

// parseInt decodes a stored amount. Postgres returns NUMERIC(78,0) without a fraction.
func parseInt(column, raw string) (sdkmath.Int, error) {
	v, err := utils.ParseUnits(raw, 0)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to decode %s %q: %w", column, raw, err)
	}
	return v, nil
}

// stringArray binds names as a TEXT[] on postgres and as JSON text on sqlite.
func (s *Store) stringArray(names []string) (driver.Valuer, error) {
	if names == nil {
		names = []string{}
	}
	if s.driver == DriverPostgres {
		return pq.Array(names), nil
	}
	b, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string array: %w", err)
	}
	return jsonText(b), nil
}

// stringArrayScanner is the read side of stringArray.
func (s *Store) stringArrayScanner(dst *[]string) sql.Scanner {
	if s.driver == DriverPostgres {
		return pq.Array(dst)
	}
	return &jsonScanner{dst: dst}
}

type jsonText []byte

func (t jsonText) Value() (driver.Value, error) { return string(t), nil }

// jsonScanner unmarshals a JSON text column into dst; NULL leaves dst untouched.
type jsonScanner struct {
	dst any
}

func (j *jsonScanner) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, j.dst)
}
