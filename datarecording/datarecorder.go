// Package datarecording stores records of a running device in SQLite.
package datarecording

import (
	"database/sql"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/pkg/errors"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// Extension is appended to database paths that do not carry it.
const Extension = ".sqlite3"

const flushThreshold = 4096

// DataRecorder writes rows of flat structs into tables.
type DataRecorder interface {
	// CreateTable makes sure a table whose columns are the fields of
	// sampleEntry exists. An existing table must have the same columns.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table created before.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of the tables created through the
	// recorder.
	ListTables() []string

	// Flush writes all the buffered entries in one transaction.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

// Filename returns the file a database path refers to.
func Filename(path string) string {
	if strings.HasSuffix(path, Extension) {
		return path
	}

	return path + Extension
}

// Open opens the database at path for appending, creating the file if it
// does not exist. An empty path picks a unique name in the working directory.
// Buffered rows are flushed when the program exits through atexit.
func Open(path string) (DataRecorder, error) {
	if path == "" {
		path = "eeprom_trace_" + xid.New().String()
	}

	db, err := sql.Open("sqlite3", Filename(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", Filename(path))
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "cannot open %s", Filename(path))
	}

	return NewWithDB(db), nil
}

// NewWithDB creates a DataRecorder over an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &sqliteRecorder{
		db:     db,
		tables: make(map[string]*table),
	}

	atexit.Register(func() { _ = r.Flush() })

	return r
}

type table struct {
	name       string
	structType reflect.Type
	columns    []string
	pending    [][]any
}

type sqliteRecorder struct {
	mu      sync.Mutex
	db      *sql.DB
	tables  map[string]*table
	pending int
	closed  bool
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) error {
	columns, types, err := columnsOf(sampleEntry)
	if err != nil {
		return errors.Wrapf(err, "table %s", tableName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("recorder is closed")
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quote(c) + " " + types[i]
	}

	_, err = r.db.Exec("CREATE TABLE IF NOT EXISTS " + quote(tableName) +
		" (" + strings.Join(defs, ", ") + ")")
	if err != nil {
		return errors.Wrapf(err, "cannot create table %s", tableName)
	}

	existing, err := r.existingColumns(tableName)
	if err != nil {
		return err
	}

	if !slices.Equal(existing, columns) {
		return errors.Errorf("table %s has columns %v, entries have %v",
			tableName, existing, columns)
	}

	r.tables[tableName] = &table{
		name:       tableName,
		structType: reflect.TypeOf(sampleEntry),
		columns:    columns,
	}

	return nil
}

func (r *sqliteRecorder) existingColumns(tableName string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT name FROM pragma_table_info(?) ORDER BY cid", tableName)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot inspect table %s", tableName)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) error {
	r.mu.Lock()

	t, ok := r.tables[tableName]
	if !ok {
		r.mu.Unlock()
		return errors.Errorf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		r.mu.Unlock()
		return errors.Errorf("entry of type %T does not fit table %s",
			entry, tableName)
	}

	t.pending = append(t.pending, structs.Values(entry))
	r.pending++
	full := r.pending >= flushThreshold

	r.mu.Unlock()

	if full {
		return r.Flush()
	}

	return nil
}

func (r *sqliteRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *sqliteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flushLocked()
}

func (r *sqliteRecorder) flushLocked() error {
	if r.pending == 0 || r.closed {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "cannot begin flush")
	}

	for _, t := range r.tables {
		err = t.insertPending(tx)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "cannot commit flush")
	}

	for _, t := range r.tables {
		t.pending = nil
	}

	r.pending = 0

	return nil
}

func (t *table) insertPending(tx *sql.Tx) error {
	if len(t.pending) == 0 {
		return nil
	}

	quoted := make([]string, len(t.columns))
	for i, c := range t.columns {
		quoted[i] = quote(c)
	}

	placeholders := strings.Repeat("?, ", len(t.columns)-1) + "?"

	stmt, err := tx.Prepare("INSERT INTO " + quote(t.name) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")")
	if err != nil {
		return errors.Wrapf(err, "cannot insert into %s", t.name)
	}
	defer stmt.Close()

	for _, values := range t.pending {
		_, err = stmt.Exec(values...)
		if err != nil {
			return errors.Wrapf(err, "cannot insert into %s", t.name)
		}
	}

	return nil
}

func (r *sqliteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	flushErr := r.flushLocked()
	r.closed = true
	closeErr := r.db.Close()

	if flushErr != nil {
		return flushErr
	}

	return closeErr
}

// columnsOf returns the column names and SQLite types of a flat struct.
func columnsOf(sampleEntry any) ([]string, []string, error) {
	st := reflect.TypeOf(sampleEntry)
	if st == nil || st.Kind() != reflect.Struct {
		return nil, nil, errors.New("entries must be structs")
	}

	if st.NumField() == 0 {
		return nil, nil, errors.New("entries must have fields")
	}

	names := make([]string, 0, st.NumField())
	types := make([]string, 0, st.NumField())

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)

		sqlType, ok := sqlTypeOf(f.Type.Kind())
		if !f.IsExported() || !ok {
			return nil, nil, errors.Errorf(
				"field %s of type %s cannot be stored", f.Name, f.Type)
		}

		names = append(names, f.Name)
		types = append(types, sqlType)
	}

	return names, types, nil
}

func sqlTypeOf(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

// quote makes an identifier safe to use in a statement, including names that
// are SQL keywords.
func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
