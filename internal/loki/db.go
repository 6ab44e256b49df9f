package loki

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	bferrors "biofilter/internal/errors"
	"biofilter/internal/interval"
	"biofilter/internal/logging"
)

// DB is a read-only connection to a compiled LOKI knowledge database.
type DB struct {
	conn        *sql.DB
	logger      *logging.Logger
	dbPath      string
	ldprofileID int64
}

// Open opens an existing knowledge database. A missing, unreadable, or
// structurally corrupt database is fatal to the run (KNOWLEDGE_UNAVAILABLE).
// ldprofile selects the LD profile used for gene boundaries; the empty string
// selects the canonical (no-LD) profile.
func Open(dbPath string, ldprofile string, logger *logging.Logger) (*DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, bferrors.New(bferrors.KnowledgeUnavailable,
			fmt.Sprintf("knowledge database not found at %s", dbPath), err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, bferrors.New(bferrors.KnowledgeUnavailable, "failed to open knowledge database", err)
	}

	// The engine never writes; query_only also prevents accidental WAL
	// side-files next to a shared knowledge database.
	pragmas := []string{
		"PRAGMA query_only=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-64000", // 64MB cache
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, bferrors.New(bferrors.KnowledgeUnavailable, "failed to set pragma", err)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	// Sanity-check the schema up front so corruption surfaces as a clear
	// fatal error instead of a mid-run query failure.
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM `namespace`").Scan(&n); err != nil {
		conn.Close()
		return nil, bferrors.New(bferrors.KnowledgeUnavailable, "knowledge database is corrupt or not a LOKI database", err)
	}

	if err := db.resolveLDProfile(ldprofile); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("Opened knowledge database", map[string]interface{}{
		"path":      dbPath,
		"ldprofile": ldprofile,
	})
	return db, nil
}

func (db *DB) resolveLDProfile(ldprofile string) error {
	err := db.conn.QueryRow(
		"SELECT ldprofile_id FROM `ldprofile` WHERE ldprofile = ?", ldprofile,
	).Scan(&db.ldprofileID)
	if err == sql.ErrNoRows {
		return bferrors.Newf(bferrors.KnowledgeUnavailable, "unknown LD profile %q", ldprofile)
	}
	if err != nil {
		return bferrors.New(bferrors.KnowledgeUnavailable, "failed to resolve LD profile", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the location of the opened database file.
func (db *DB) Path() string {
	return db.dbPath
}

func kindTable(kind Kind) (table, idCol string) {
	switch kind {
	case KindGroup:
		return "`group`", "group_id"
	case KindSource:
		return "`source`", "source_id"
	default:
		return "`biopolymer`", "biopolymer_id"
	}
}

// Lookup implements Store.
func (db *DB) Lookup(kind Kind, typ, value string) ([]EntityID, error) {
	switch kind {
	case KindSNP:
		return db.lookupSNP(value)
	case KindGene:
		query := `
			SELECT DISTINCT bn.biopolymer_id
			FROM biopolymer_name bn
			JOIN namespace n ON n.namespace_id = bn.namespace_id
			WHERE bn.name = ?`
		args := []interface{}{value}
		if typ != "" {
			query += " AND n.namespace = ?"
			args = append(args, typ)
		}
		return db.collectIDs(query, args...)
	case KindGroup:
		query := `
			SELECT DISTINCT gn.group_id
			FROM group_name gn
			JOIN namespace n ON n.namespace_id = gn.namespace_id
			WHERE gn.name = ?`
		args := []interface{}{value}
		if typ != "" {
			query += " AND n.namespace = ?"
			args = append(args, typ)
		}
		return db.collectIDs(query, args...)
	case KindSource:
		return db.collectIDs("SELECT source_id FROM `source` WHERE source = ?", value)
	}
	return nil, nil
}

// LookupLabel implements Store.
func (db *DB) LookupLabel(kind Kind, value string) ([]EntityID, error) {
	if kind == KindSNP {
		return db.lookupSNP(value)
	}
	table, idCol := kindTable(kind)
	if kind == KindSource {
		return db.collectIDs("SELECT source_id FROM `source` WHERE source = ?", value)
	}
	return db.collectIDs(
		fmt.Sprintf("SELECT %s FROM %s WHERE label = ?", idCol, table), value)
}

func (db *DB) lookupSNP(value string) ([]EntityID, error) {
	rs, ok := ParseRS(value)
	if !ok {
		return nil, nil
	}
	cur, _, err := db.CurrentRS(rs)
	if err != nil {
		return nil, err
	}
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM snp_locus WHERE rs = ?", cur).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return []EntityID{EntityID(cur)}, nil
}

// LabelOf implements Store.
func (db *DB) LabelOf(kind Kind, id EntityID) (string, string, bool, error) {
	var label string
	var description sql.NullString
	var err error
	switch kind {
	case KindSNP:
		return fmt.Sprintf("rs%d", id), "", true, nil
	case KindGroup:
		err = db.conn.QueryRow(
			"SELECT label, description FROM `group` WHERE group_id = ?", id,
		).Scan(&label, &description)
	case KindSource:
		err = db.conn.QueryRow(
			"SELECT source, '' FROM `source` WHERE source_id = ?", id,
		).Scan(&label, &description)
	default:
		err = db.conn.QueryRow(
			"SELECT label, description FROM biopolymer WHERE biopolymer_id = ?", id,
		).Scan(&label, &description)
	}
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return label, description.String, true, nil
}

// CurrentRS implements Store.
func (db *DB) CurrentRS(rs int64) (int64, bool, error) {
	var cur int64
	err := db.conn.QueryRow(
		"SELECT rsCurrent FROM snp_merge WHERE rsMerged = ?", rs,
	).Scan(&cur)
	if err == sql.ErrNoRows {
		return rs, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return cur, true, nil
}

// SNPLoci implements Store.
func (db *DB) SNPLoci(rs int64) ([]Locus, error) {
	rows, err := db.conn.Query("SELECT chr, pos FROM snp_locus WHERE rs = ?", rs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var loci []Locus
	for rows.Next() {
		var l Locus
		if err := rows.Scan(&l.Chr, &l.Pos); err != nil {
			return nil, err
		}
		loci = append(loci, l)
	}
	return loci, rows.Err()
}

// RegionOf implements Store.
func (db *DB) RegionOf(id EntityID) (*interval.Region, error) {
	var r interval.Region
	err := db.conn.QueryRow(`
		SELECT chr, MIN(posMin), MAX(posMax)
		FROM biopolymer_region
		WHERE biopolymer_id = ? AND ldprofile_id = ?
		GROUP BY chr
		ORDER BY COUNT(*) DESC, chr
		LIMIT 1`, id, db.ldprofileID,
	).Scan(&r.Chr, &r.Start, &r.Stop)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GroupMembers implements Store.
func (db *DB) GroupMembers(group EntityID) ([]Member, error) {
	rows, err := db.conn.Query(`
		SELECT gmn.member_id, n.namespace, n.polygenic, gmn.name, bn.biopolymer_id
		FROM group_member_name gmn
		JOIN namespace n ON n.namespace_id = gmn.namespace_id
		LEFT JOIN biopolymer_name bn
			ON bn.namespace_id = gmn.namespace_id AND bn.name = gmn.name
		WHERE gmn.group_id = ?
		ORDER BY gmn.member_id`, group)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []Member
	nameIdx := make(map[string]int) // value key within current member
	for rows.Next() {
		var memberID, polygenic int
		var namespace, name string
		var geneID sql.NullInt64
		if err := rows.Scan(&memberID, &namespace, &polygenic, &name, &geneID); err != nil {
			return nil, err
		}

		if len(members) == 0 || members[len(members)-1].MemberID != memberID {
			members = append(members, Member{GroupID: group, MemberID: memberID})
			nameIdx = make(map[string]int)
		}
		m := &members[len(members)-1]

		key := namespace + "\x00" + name
		i, seen := nameIdx[key]
		if !seen {
			m.Names = append(m.Names, MemberName{
				Type:    namespace,
				Value:   name,
				Protein: polygenic != 0,
			})
			i = len(m.Names) - 1
			nameIdx[key] = i
		}
		if geneID.Valid {
			m.Names[i].Genes = append(m.Names[i].Genes, EntityID(geneID.Int64))
		}
	}
	return members, rows.Err()
}

// GroupSource implements Store.
func (db *DB) GroupSource(group EntityID) (EntityID, error) {
	var id EntityID
	err := db.conn.QueryRow(
		"SELECT source_id FROM `group` WHERE group_id = ?", group,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, bferrors.Newf(bferrors.KnowledgeUnavailable, "group %d has no source record", group)
	}
	return id, err
}

// GroupSize implements Store.
func (db *DB) GroupSize(group EntityID) (int, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(DISTINCT bn.biopolymer_id)
		FROM group_member_name gmn
		JOIN biopolymer_name bn
			ON bn.namespace_id = gmn.namespace_id AND bn.name = gmn.name
		WHERE gmn.group_id = ?`, group,
	).Scan(&n)
	return n, err
}

// GroupsOf implements Store.
func (db *DB) GroupsOf(gene EntityID) ([]EntityID, error) {
	return db.collectIDs(`
		SELECT DISTINCT gmn.group_id
		FROM biopolymer_name bn
		JOIN group_member_name gmn
			ON gmn.namespace_id = bn.namespace_id AND gmn.name = bn.name
		WHERE bn.biopolymer_id = ?`, gene)
}

// Groups implements Store.
func (db *DB) Groups() ([]EntityID, error) {
	return db.collectIDs("SELECT group_id FROM `group` ORDER BY group_id")
}

func (db *DB) collectIDs(query string, args ...interface{}) ([]EntityID, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []EntityID
	for rows.Next() {
		var id EntityID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
