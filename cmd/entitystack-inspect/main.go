// Command entitystack-inspect opens a Backend A database read-only and
// dumps per-entity-type row counts and sync status breakdown; it does not
// report HNSW index size. It is grounded on the teacher's tools/entities command-line
// utilities, which connect to the SQLite file directly and print a
// flag-driven report rather than going through the application's own
// repository layer.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"entitystack/config"
)

// entityTables lists every table entitystack-inspect knows to look for.
// Application entity types are not registered anywhere the inspector can
// discover generically (storage.Adapter only exists once instantiated
// with a concrete Go type), so built-in tables plus any caller-supplied
// extras via -table are all it can enumerate.
var entityTables = []string{"entity_version", "edge", "embedding_task"}

func main() {
	dbPath := flag.String("db", "", "path to the Backend A sqlite file (default: config.Load().NativeDBPath())")
	extraTable := flag.String("table", "", "additional application entity table to inspect")
	flag.Parse()

	path := *dbPath
	if path == "" {
		path = config.Load().NativeDBPath()
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		log.Fatalf("entitystack-inspect: open %s: %v", path, err)
	}
	defer db.Close()

	tables := entityTables
	if *extraTable != "" {
		tables = append(tables, *extraTable)
	}

	for _, table := range tables {
		report(db, table)
	}
}

func report(db *sql.DB, table string) {
	var total int64
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&total); err != nil {
		fmt.Fprintf(os.Stderr, "%-16s  (not present: %v)\n", table, err)
		return
	}

	rows, err := db.Query(fmt.Sprintf("SELECT sync_status, COUNT(*) FROM %s GROUP BY sync_status", table))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%-16s  total=%-6d  sync breakdown unavailable: %v\n", table, total, err)
		return
	}
	defer rows.Close()

	breakdown := map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		breakdown[status] = count
	}

	fmt.Printf("%-16s  total=%-6d  local=%-6d synced=%-6d pendingPush=%-6d conflict=%-6d\n",
		table, total, breakdown["local"], breakdown["synced"], breakdown["pendingPush"], breakdown["conflict"])
}
