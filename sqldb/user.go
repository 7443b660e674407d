package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/wansing/moderation/core"
	"golang.org/x/crypto/bcrypt"
)

var ErrAuth = errors.New("authentication failed")

func clean(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	return name
}

type user struct {
	id    int
	name  string
	staff bool
}

func (u *user) ID() int {
	return u.id
}

func (u *user) Name() string {
	return u.name
}

func (u *user) IsStaff() bool {
	return u.staff
}

type UserDB struct {
	*sql.DB
	get         *sql.Stmt
	getByName   *sql.Stmt
	insert      *sql.Stmt
	login       *sql.Stmt
	setPassword *sql.Stmt
	setStaff    *sql.Stmt
}

func NewUserDB(db *sql.DB) (*UserDB, error) {

	_, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS usr (
			id INTEGER PRIMARY KEY,
			name varchar(128) NOT NULL,
			password varchar(72) NOT NULL DEFAULT '', /* bcrypt hash */
			staff int(1) NOT NULL DEFAULT '0',
			UNIQUE(name)
		);`)
	if err != nil {
		return nil, err
	}

	var p = &preparer{db: db}
	var userDB = &UserDB{}
	userDB.DB = db
	userDB.get = p.prepare("SELECT id, name, staff FROM usr WHERE id = ? LIMIT 1")
	userDB.getByName = p.prepare("SELECT id, name, staff FROM usr WHERE name = ? LIMIT 1")
	userDB.insert = p.prepare("INSERT INTO usr (name) VALUES (?)") // empty password field is safe because no bcrypt hash equals it
	userDB.login = p.prepare("SELECT id, name, staff, password FROM usr WHERE name = ?")
	userDB.setPassword = p.prepare("UPDATE usr SET password = ? WHERE id = ?")
	userDB.setStaff = p.prepare("UPDATE usr SET staff = ? WHERE id = ?")
	if p.err != nil {
		return nil, p.err
	}
	return userDB, nil
}

func (db *UserDB) scanUser(row *sql.Row, key string) (core.DBUser, error) {
	var u = &user{}
	var staff int
	err := row.Scan(&u.id, &u.name, &staff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{What: "user", Key: key}
	}
	if err != nil {
		return nil, err
	}
	u.staff = staff != 0
	return u, nil
}

func (db *UserDB) GetUser(ctx context.Context, id int) (core.DBUser, error) {
	return db.scanUser(db.get.QueryRowContext(ctx, id), strconv.Itoa(id))
}

func (db *UserDB) GetUserByName(ctx context.Context, name string) (core.DBUser, error) {
	name = clean(name)
	return db.scanUser(db.getByName.QueryRowContext(ctx, name), name)
}

func (db *UserDB) InsertUser(ctx context.Context, name string) (core.DBUser, error) {
	name = clean(name)
	if name == "" {
		return nil, &core.ValidationError{Field: "name", Message: "user name can't be empty"}
	}
	result, err := db.insert.ExecContext(ctx, name)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &user{
		id:   int(id),
		name: name,
	}, nil
}

func (db *UserDB) LoginUser(ctx context.Context, name, password string) (core.DBUser, error) {

	var u = &user{}
	var staff int
	var hash string

	err := db.login.QueryRowContext(ctx, clean(name)).Scan(&u.id, &u.name, &staff, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuth // user not found
	}
	if err != nil {
		return nil, err
	}

	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrAuth // wrong password
	}

	u.staff = staff != 0
	return u, nil
}

func (db *UserDB) SetPassword(ctx context.Context, u core.DBUser, password string) error {

	if password == "" {
		return errors.New("no password given")
	}

	if u.ID() == 0 {
		return errors.New("can't set password of user 0")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.setPassword.ExecContext(ctx, string(hash), u.ID())
	return err
}

func (db *UserDB) SetStaff(ctx context.Context, u core.DBUser, staff bool) error {
	_, err := db.setStaff.ExecContext(ctx, boolToInt(staff), u.ID())
	if err == nil {
		if u, ok := u.(*user); ok {
			u.staff = staff
		}
	}
	return err
}
