package fingerprint

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kebairia/dbshield/internal/config"
)

// mariadbProber fingerprints a MariaDB/MySQL database from
// information_schema table statistics plus the binlog position.
type mariadbProber struct{}

func (p *mariadbProber) Fingerprint(ctx context.Context, conn config.Connection) (Fingerprint, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=false",
		url.QueryEscape(conn.User), conn.Password, conn.Host, conn.Port, conn.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return "", fmt.Errorf("%w: open: %v", ErrUnavailable, err)
	}
	defer db.Close()

	h := sha256.New()

	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME,
		       IFNULL(TABLE_ROWS, 0),
		       IFNULL(AUTO_INCREMENT, 0),
		       IFNULL(UPDATE_TIME, '')
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`, conn.Database)
	if err != nil {
		return "", fmt.Errorf("%w: table stats: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, updateTime string
		var tableRows, autoInc uint64
		if err := rows.Scan(&name, &tableRows, &autoInc, &updateTime); err != nil {
			return "", fmt.Errorf("%w: scan table stats: %v", ErrUnavailable, err)
		}
		fmt.Fprintf(h, "%s|%d|%d|%s\n", name, tableRows, autoInc, updateTime)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("%w: table stats: %v", ErrUnavailable, err)
	}

	// Binlog coordinates move on every write, catching changes that the
	// table statistics are too coarse to see. Column count differs between
	// MySQL and MariaDB, so scan whatever comes back. Binary logging may
	// be off entirely; an empty result is not an error.
	status, err := db.QueryContext(ctx, "SHOW MASTER STATUS")
	if err != nil {
		return "", fmt.Errorf("%w: binlog status: %v", ErrUnavailable, err)
	}
	defer status.Close()
	if status.Next() {
		cols, err := status.Columns()
		if err != nil {
			return "", fmt.Errorf("%w: binlog status columns: %v", ErrUnavailable, err)
		}
		vals := make([]sql.RawBytes, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := status.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("%w: scan binlog status: %v", ErrUnavailable, err)
		}
		// File and Position are always the first two columns.
		if len(vals) >= 2 {
			fmt.Fprintf(h, "binlog:%s:%s\n", vals[0], vals[1])
		}
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("%w: binlog status: %v", ErrUnavailable, err)
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}
