package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wansing/moderation/core"
)

const entityColumns = "id, object_type, object_id, status, state, moderator_id, moderator_name, reason, decided_at, created_at, prior"

// createEntityTables is idempotent. It is called by every constructor whose statements refer to the tables.
func createEntityTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS moderated_entity (
			id varchar(36) NOT NULL PRIMARY KEY,
			object_type varchar(64) NOT NULL,
			object_id varchar(64) NOT NULL,
			status int(11) NOT NULL,
			state int(11) NOT NULL,
			moderator_id int(11) NOT NULL DEFAULT '0',
			moderator_name varchar(128) NOT NULL DEFAULT '',
			reason text NOT NULL,
			decided_at INTEGER NOT NULL DEFAULT '0', /* zero while pending */
			created_at INTEGER NOT NULL,
			prior mediumtext NOT NULL, /* json */
			UNIQUE (object_type, object_id)
		);`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS moderation_history (
			id INTEGER PRIMARY KEY,
			entity_id varchar(36) NOT NULL,
			from_status int(11) NOT NULL,
			to_status int(11) NOT NULL,
			actor_id int(11) NOT NULL,
			actor_name varchar(128) NOT NULL,
			reason text NOT NULL,
			ts INTEGER NOT NULL
		);`)
	return err
}

type EntityDB struct {
	*sql.DB
	exists        *sql.Stmt
	get           *sql.Stmt
	getFor        *sql.Stmt
	history       *sql.Stmt
	insert        *sql.Stmt
	insertHistory *sql.Stmt
	update        *sql.Stmt
	updatePrior   *sql.Stmt
}

func NewEntityDB(db *sql.DB) (*EntityDB, error) {

	if err := createEntityTables(db); err != nil {
		return nil, err
	}

	var p = &preparer{db: db}
	var entityDB = &EntityDB{}
	entityDB.DB = db
	entityDB.exists = p.prepare("SELECT 1 FROM moderated_entity WHERE id = ?")
	entityDB.get = p.prepare("SELECT " + entityColumns + " FROM moderated_entity WHERE id = ? LIMIT 1")
	entityDB.getFor = p.prepare("SELECT " + entityColumns + " FROM moderated_entity WHERE object_type = ? AND object_id = ? LIMIT 1")
	entityDB.history = p.prepare("SELECT entity_id, from_status, to_status, actor_id, actor_name, reason, ts FROM moderation_history WHERE entity_id = ? ORDER BY id")
	entityDB.insert = p.prepare("INSERT INTO moderated_entity (" + entityColumns + ") VALUES (" + placeholders(11) + ")")
	entityDB.insertHistory = p.prepare("INSERT INTO moderation_history (entity_id, from_status, to_status, actor_id, actor_name, reason, ts) VALUES (?, ?, ?, ?, ?, ?, ?)")
	// the audit fields are written in one statement, so they can't get inconsistent
	entityDB.update = p.prepare("UPDATE moderated_entity SET status = ?, state = ?, moderator_id = ?, moderator_name = ?, reason = ?, decided_at = ? WHERE id = ?")
	entityDB.updatePrior = p.prepare("UPDATE moderated_entity SET status = ?, state = ?, moderator_id = ?, moderator_name = ?, reason = ?, decided_at = ?, prior = ? WHERE id = ?")
	if p.err != nil {
		return nil, p.err
	}
	return entityDB, nil
}

func scanEntity(row scanner) (*core.Entity, error) {

	var e = &core.Entity{}
	var id string
	var status, state int
	var decidedAt, createdAt int64
	var prior string

	if err := row.Scan(&id, &e.ObjectType, &e.ObjectID, &status, &state, &e.ModeratorID, &e.ModeratorName, &e.Reason, &decidedAt, &createdAt, &prior); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing entity id %q: %w", id, err)
	}

	e.Status = core.Status(status)
	if !e.Status.Valid() {
		return nil, fmt.Errorf("entity %s: invalid status %d", id, status)
	}

	e.State = core.State(state)
	e.DecidedAt = fromUnix(decidedAt)
	e.CreatedAt = fromUnix(createdAt)

	if e.Prior, err = core.DecodeSnapshot([]byte(prior)); err != nil {
		return nil, fmt.Errorf("entity %s: decoding prior snapshot: %w", id, err)
	}

	return e, nil
}

func (db *EntityDB) GetEntity(ctx context.Context, id uuid.UUID) (*core.Entity, error) {
	e, err := scanEntity(db.get.QueryRowContext(ctx, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{What: "moderated entity", Key: id.String()}
	}
	return e, err
}

func (db *EntityDB) GetEntityFor(ctx context.Context, objectType, objectID string) (*core.Entity, error) {
	e, err := scanEntity(db.getFor.QueryRowContext(ctx, objectType, objectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{What: "moderated entity for", Key: objectType + "/" + objectID}
	}
	return e, err
}

func (db *EntityDB) InsertEntity(ctx context.Context, e *core.Entity, h core.HistoryEntry) error {

	prior, err := e.Prior.Encode()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.StmtContext(ctx, db.insert).ExecContext(ctx, e.ID.String(), e.ObjectType, e.ObjectID, int(e.Status), int(e.State), e.ModeratorID, e.ModeratorName, e.Reason, unix(e.DecidedAt), unix(e.CreatedAt), string(prior))
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := insertHistory(ctx, tx, db.insertHistory, h); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Transition writes the decision and appends the history entry in one transaction. It does not modify e.
func (db *EntityDB) Transition(ctx context.Context, e *core.Entity, d core.Decision, h core.HistoryEntry) error {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// mysql reports zero affected rows if nothing has changed, so existence is checked separately
	var one int
	err = tx.StmtContext(ctx, db.exists).QueryRowContext(ctx, e.ID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		tx.Rollback()
		return &core.NotFoundError{What: "moderated entity", Key: e.ID.String()}
	}
	if err != nil {
		tx.Rollback()
		return err
	}

	if d.Prior == nil {
		_, err = tx.StmtContext(ctx, db.update).ExecContext(ctx, int(d.Status), int(d.State), d.ModeratorID, d.ModeratorName, d.Reason, unix(d.DecidedAt), e.ID.String())
	} else {
		var prior []byte
		if prior, err = d.Prior.Encode(); err == nil {
			_, err = tx.StmtContext(ctx, db.updatePrior).ExecContext(ctx, int(d.Status), int(d.State), d.ModeratorID, d.ModeratorName, d.Reason, unix(d.DecidedAt), string(prior), e.ID.String())
		}
	}
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := insertHistory(ctx, tx, db.insertHistory, h); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func insertHistory(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, h core.HistoryEntry) error {
	_, err := tx.StmtContext(ctx, stmt).ExecContext(ctx, h.EntityID.String(), int(h.From), int(h.To), h.ActorID, h.ActorName, h.Reason, unix(h.At))
	return err
}

// queueWhere never includes drafts.
func queueWhere(filter core.QueueFilter) (string, []interface{}) {
	var statuses = filter.EffectiveStatuses()
	var args = []interface{}{int(core.Normal)}
	for _, s := range statuses {
		args = append(args, int(s))
	}
	var where = "state = ? AND status IN (" + placeholders(len(statuses)) + ")"
	if filter.Type != "" {
		where += " AND object_type = ?"
		args = append(args, filter.Type)
	}
	return where, args
}

// Queue returns the entities matching the filter, oldest first.
func (db *EntityDB) Queue(ctx context.Context, filter core.QueueFilter, limit, offset int) ([]*core.Entity, error) {

	where, args := queueWhere(filter)
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, "SELECT "+entityColumns+" FROM moderated_entity WHERE "+where+" ORDER BY created_at, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities = []*core.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (db *EntityDB) CountQueue(ctx context.Context, filter core.QueueFilter) (int, error) {
	where, args := queueWhere(filter)
	var count int
	return count, db.QueryRowContext(ctx, "SELECT COUNT(1) FROM moderated_entity WHERE "+where, args...).Scan(&count)
}

func (db *EntityDB) History(ctx context.Context, entityID uuid.UUID) ([]core.HistoryEntry, error) {

	rows, err := db.history.QueryContext(ctx, entityID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries = []core.HistoryEntry{}
	for rows.Next() {
		var h core.HistoryEntry
		var id string
		var from, to int
		var ts int64
		if err := rows.Scan(&id, &from, &to, &h.ActorID, &h.ActorName, &h.Reason, &ts); err != nil {
			return nil, err
		}
		if h.EntityID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		h.From = core.Status(from)
		h.To = core.Status(to)
		h.At = fromUnix(ts)
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
