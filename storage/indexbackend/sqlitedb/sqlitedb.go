// Package sqlitedb stores a string-keyed location index in an embedded SQLite database.
// Keys are unique and ordered; sets are batched into a transaction until Commit.
package sqlitedb

import (
	"database/sql"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/navijation/njkv/storage/location"
	"github.com/navijation/njkv/util"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const FileName = "store_index.s3db"

const (
	bootstrapSQL = `
		CREATE TABLE IF NOT EXISTS store_offsets (
			store_key   TEXT PRIMARY KEY NOT NULL,
			shard       INTEGER NOT NULL,
			byte_offset INTEGER NOT NULL,
			byte_length INTEGER NOT NULL
		) WITHOUT ROWID;`

	lookupSQL = `
		SELECT shard, byte_offset, byte_length FROM store_offsets WHERE store_key = ?;`

	upsertSQL = `
		INSERT INTO store_offsets(store_key, shard, byte_offset, byte_length)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(store_key) DO UPDATE SET
			shard = excluded.shard,
			byte_offset = excluded.byte_offset,
			byte_length = excluded.byte_length;`

	countSQL = `SELECT COUNT(*) FROM store_offsets;`
)

type DB struct {
	path string
	db   *sql.DB

	lookup *sql.Stmt
	upsert *sql.Stmt

	// open transaction, if any Set happened since the last Commit
	tx       *sql.Tx
	txLookup *sql.Stmt
	txUpsert *sql.Stmt
}

type OpenArgs struct {
	Dir string
	// MustExist fails with os.ErrNotExist instead of creating a missing database.
	MustExist bool
}

func Open(args OpenArgs) (_ *DB, err error) {
	path := filepath.Join(args.Dir, FileName)
	uriValues := url.Values{
		"_synchronous":  {"FULL"},
		"_journal_mode": {"TRUNCATE"},
	}
	if args.MustExist {
		if exists, err := util.FileExists(path); err != nil {
			return nil, err
		} else if !exists {
			return nil, errors.Wrapf(os.ErrNotExist, "opening %s", path)
		}
		uriValues.Set("mode", "rw")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+uriValues.Encode())
	if err != nil {
		return nil, errors.WithMessage(err, "opening SQLite index")
	}
	// a single connection, so that reads issued while a transaction is open see its writes
	db.SetMaxOpenConns(1)

	out := &DB{path: path, db: db}
	defer func() {
		if err != nil {
			_ = out.closeStatements()
			_ = db.Close()
		}
	}()

	if _, err = db.Exec(bootstrapSQL); err != nil {
		return nil, errors.WithMessage(err, "bootstrapping SQLite index")
	}
	if out.lookup, err = db.Prepare(lookupSQL); err != nil {
		return nil, errors.WithMessage(err, "preparing lookup")
	}
	if out.upsert, err = db.Prepare(upsertSQL); err != nil {
		return nil, errors.WithMessage(err, "preparing upsert")
	}
	return out, nil
}

func (me *DB) Path() string {
	return me.path
}

func (me *DB) Get(key string) (out location.Location, exists bool, _ error) {
	stmt := me.lookup
	if me.tx != nil {
		stmt = me.txLookup
	}

	var shard, offset, length int64
	switch err := stmt.QueryRow(key).Scan(&shard, &offset, &length); {
	case errors.Is(err, sql.ErrNoRows):
		return out, false, nil
	case err != nil:
		return out, false, errors.WithMessagef(err, "looking up %q", key)
	}

	return location.Location{
		Shard:  uint64(shard),
		Offset: uint64(offset),
		Length: uint64(length),
	}, true, nil
}

func (me *DB) Set(key string, loc location.Location) error {
	if err := me.begin(); err != nil {
		return err
	}
	if _, err := me.txUpsert.Exec(key, int64(loc.Shard), int64(loc.Offset), int64(loc.Length)); err != nil {
		return errors.WithMessagef(err, "upserting %q", key)
	}
	return nil
}

// Count returns the number of indexed keys.
func (me *DB) Count() (count uint64, _ error) {
	var row *sql.Row
	if me.tx != nil {
		row = me.tx.QueryRow(countSQL)
	} else {
		row = me.db.QueryRow(countSQL)
	}
	if err := row.Scan(&count); err != nil {
		return 0, errors.WithMessage(err, "counting keys")
	}
	return count, nil
}

func (me *DB) Commit() error {
	if me.tx == nil {
		return nil
	}
	err := me.tx.Commit()
	me.tx, me.txLookup, me.txUpsert = nil, nil, nil
	if err != nil {
		return errors.WithMessage(err, "committing SQLite index")
	}
	return nil
}

func (me *DB) Close() (err error) {
	err = multierr.Append(err, me.Commit())
	err = multierr.Append(err, me.closeStatements())
	return multierr.Append(err, me.db.Close())
}

func (me *DB) begin() (err error) {
	if me.tx != nil {
		return nil
	}
	if me.tx, err = me.db.Begin(); err != nil {
		me.tx = nil
		return errors.WithMessage(err, "beginning SQLite transaction")
	}
	me.txLookup = me.tx.Stmt(me.lookup)
	me.txUpsert = me.tx.Stmt(me.upsert)
	return nil
}

func (me *DB) closeStatements() (err error) {
	for _, stmt := range []*sql.Stmt{me.lookup, me.upsert} {
		if stmt != nil {
			err = multierr.Append(err, stmt.Close())
		}
	}
	return err
}
