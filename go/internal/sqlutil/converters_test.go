package sqlutil

import (
	"database/sql"
	"testing"
)

func TestNullStringRoundTrip(t *testing.T) {
	if NullString("").Valid {
		t.Fatalf("empty string must map to NULL")
	}
	ns := NullString("user-1")
	if !ns.Valid || StringOrEmpty(ns) != "user-1" {
		t.Fatalf("unexpected %+v", ns)
	}
	if StringOrEmpty(sql.NullString{}) != "" {
		t.Fatalf("NULL must map to empty string")
	}
}
