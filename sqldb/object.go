package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wansing/moderation/core"
)

const objectColumns = "o.type, o.id, o.fields, o.ts_created, o.ts_changed"

// ObjectDB stores the live versions of domain objects.
type ObjectDB struct {
	*sql.DB
	get        *sql.Stmt
	insert     *sql.Stmt
	tsCreated  *sql.Stmt
	underlying *sql.Stmt
	update     *sql.Stmt
	visible    *sql.Stmt
}

func NewObjectDB(db *sql.DB) (*ObjectDB, error) {

	if err := createEntityTables(db); err != nil {
		return nil, err
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS domain_object (
			type varchar(64) NOT NULL,
			id varchar(64) NOT NULL,
			fields mediumtext NOT NULL, /* json */
			ts_created INTEGER NOT NULL,
			ts_changed INTEGER NOT NULL,
			PRIMARY KEY (type, id)
		);`)
	if err != nil {
		return nil, err
	}

	var p = &preparer{db: db}
	var objectDB = &ObjectDB{}
	objectDB.DB = db
	objectDB.get = p.prepare("SELECT " + objectColumns + " FROM domain_object o WHERE o.type = ? AND o.id = ? LIMIT 1")
	objectDB.insert = p.prepare("INSERT INTO domain_object (type, id, fields, ts_created, ts_changed) VALUES (?, ?, ?, ?, ?)")
	objectDB.tsCreated = p.prepare("SELECT ts_created FROM domain_object WHERE type = ? AND id = ?")
	objectDB.underlying = p.prepare("SELECT " + objectColumns + " FROM domain_object o WHERE o.type = ? ORDER BY o.ts_created DESC, o.id")
	objectDB.update = p.prepare("UPDATE domain_object SET fields = ?, ts_changed = ? WHERE type = ? AND id = ?")
	// objects without moderation record are visible
	objectDB.visible = p.prepare(`
		SELECT ` + objectColumns + `
		FROM domain_object o
		LEFT JOIN moderated_entity e ON e.object_type = o.type AND e.object_id = o.id
		WHERE o.type = ? AND (e.id IS NULL OR (e.state = ? AND (e.status = ? OR (e.status = ? AND ? = 1))))
		ORDER BY o.ts_created DESC, o.id`)
	if p.err != nil {
		return nil, p.err
	}
	return objectDB, nil
}

func scanObject(row scanner) (*core.Object, error) {
	var o = &core.Object{}
	var fields string
	var tsCreated, tsChanged int64
	if err := row.Scan(&o.Type, &o.ID, &fields, &tsCreated, &tsChanged); err != nil {
		return nil, err
	}
	var err error
	if o.Fields, err = core.DecodeSnapshot([]byte(fields)); err != nil {
		return nil, fmt.Errorf("object %s/%s: decoding fields: %w", o.Type, o.ID, err)
	}
	o.TsCreated = fromUnix(tsCreated)
	o.TsChanged = fromUnix(tsChanged)
	return o, nil
}

func scanObjects(rows *sql.Rows, err error) ([]*core.Object, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects = []*core.Object{}
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

func (db *ObjectDB) GetObject(ctx context.Context, objectType, id string) (*core.Object, error) {
	o, err := scanObject(db.get.QueryRowContext(ctx, objectType, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{What: "object", Key: objectType + "/" + id}
	}
	return o, err
}

// SaveObject inserts or updates the object and sets its timestamps.
func (db *ObjectDB) SaveObject(ctx context.Context, o *core.Object) error {

	fields, err := o.Fields.Encode()
	if err != nil {
		return err
	}

	var now = time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// mysql reports zero affected rows if nothing has changed, so we can't rely on the result of the update
	var tsCreated int64
	err = tx.StmtContext(ctx, db.tsCreated).QueryRowContext(ctx, o.Type, o.ID).Scan(&tsCreated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		tsCreated = now.Unix()
		_, err = tx.StmtContext(ctx, db.insert).ExecContext(ctx, o.Type, o.ID, string(fields), tsCreated, now.Unix())
	case err == nil:
		_, err = tx.StmtContext(ctx, db.update).ExecContext(ctx, string(fields), now.Unix(), o.Type, o.ID)
	}
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	o.TsCreated = fromUnix(tsCreated)
	o.TsChanged = fromUnix(now.Unix())
	return nil
}

func (db *ObjectDB) Underlying(ctx context.Context, objectType string) ([]*core.Object, error) {
	return scanObjects(db.underlying.QueryContext(ctx, objectType))
}

func (db *ObjectDB) Visible(ctx context.Context, objectType string, visibleUntilRejected bool) ([]*core.Object, error) {
	return scanObjects(db.visible.QueryContext(ctx, objectType, int(core.Normal), int(core.Approved), int(core.Pending), boolToInt(visibleUntilRejected)))
}
