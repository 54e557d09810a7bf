// Package script renders a schema.Schema as SQL scripts: DDL that drops and
// recreates the tables, and DML that deletes and reinserts the captured
// records.
package script

import (
	"fmt"
	"strings"
	"time"

	"github.com/tordrt/dbsnap/internal/schema"
)

// Tool is the name written into script banners
const Tool = "dbsnap"

func writeBanner(sb *strings.Builder, kind string, s *schema.Schema) {
	fmt.Fprintf(sb, "-- %s %s script\n", Tool, kind)
	fmt.Fprintf(sb, "-- Schema: %s\n", s.Name)
	fmt.Fprintf(sb, "-- Dialect: %s\n", s.Dialect)
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(sb, "-- Generated at: %s\n", s.GeneratedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(sb, "-- Build time: %s\n", s.BuildTime.Round(time.Millisecond))
	fmt.Fprintf(sb, "-- Tables: %d, records: %d\n\n", s.Len(), s.RecordCount())
}
