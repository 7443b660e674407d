package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wansing/moderation/backend"
	"github.com/wansing/moderation/core"
	"github.com/wansing/moderation/sqldb"
	"github.com/wansing/moderation/util"
	"github.com/xo/dburl"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh/terminal"
)

const defaultDB = "sqlite3:moderation.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared"

func main() {
	os.Exit(run())
}

func run() int {

	var dbArg string    // is in both FlagSets
	var logLevel string // is in both FlagSets

	// default FlagSet

	// Your reverse proxy must not strip the prefix. So if you're using nginx, the "proxy_pass" value should not end with a slash."
	var base = flag.String("base", "", "strip off this `prefix` from every HTTP request and prepended it to every link")
	// MySQL: collation should be utf8mb4_unicode_ci
	flag.StringVar(&dbArg, "db", defaultDB, "sql database url, see github.com/xo/dburl")
	flag.StringVar(&logLevel, "log-level", "info", "log `level`: debug, info, warn or error")
	var listenAddr = flag.String("listen", "127.0.0.1:8080", "serve HTTP content at this `ip:port`")
	var policiesFile = flag.String("policies", "policies.ini", "load moderation policies from this ini `file`")

	// init FlagSet

	var initFlags = flag.NewFlagSet("init", flag.ExitOnError)

	initFlags.StringVar(&dbArg, "db", defaultDB, "sql database url, see github.com/xo/dburl") // copied from above
	initFlags.StringVar(&logLevel, "log-level", "info", "log `level`: debug, info, warn or error")
	var initInsert = initFlags.Bool("insert", false, "creates the given user and asks for a password")
	var initStaff = initFlags.Bool("staff", false, "makes the given user a moderator")
	var initUnstaff = initFlags.Bool("unstaff", false, "revokes the moderator flag of the given user")
	var username = initFlags.String("user", "", "specifies a user `name`")

	if len(os.Args) > 1 && os.Args[1] == "init" {
		initFlags.Parse(os.Args[2:])
	} else {
		flag.Parse()
	}

	// logger

	logger, err := util.NewLogger(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()

	// database

	dbURL, err := dburl.Parse(dbArg)
	if err != nil {
		logger.Error("could not parse database url", zap.Error(err))
		return 1
	}

	sqlDB, err := sql.Open(dbURL.Driver, dbURL.DSN)
	if err != nil {
		logger.Error("could not open sql database", zap.Error(err))
		return 1
	}

	defer func() {
		logger.Info("closing database")
		sqlDB.Close()
	}()

	if err = sqlDB.Ping(); err != nil {
		logger.Error("could not ping sql database", zap.Error(err))
		return 1
	}

	logger.Info("using database", zap.String("driver", dbURL.Driver), zap.String("url", dbURL.Redacted()))

	// assemble stuff

	db, err := assemble(sqlDB, dbURL.Driver, logger)
	if err != nil {
		logger.Error("could not set up database", zap.Error(err))
		return 1
	}

	// init

	if initFlags.Parsed() {
		if *username == "" {
			logger.Error("no user name given")
			return 1
		}
		switch {
		case *initInsert:
			if err := insertUser(db, *username, *initStaff); err != nil {
				logger.Error("error creating user", zap.String("user", *username), zap.Error(err))
				return 1
			}
		case *initStaff, *initUnstaff:
			if err := setStaff(db, *username, *initStaff); err != nil {
				logger.Error("error setting staff flag", zap.String("user", *username), zap.Error(err))
				return 1
			}
		}
		return 0
	}

	// serve

	db.Policies, err = core.LoadPolicies(*policiesFile)
	if err != nil {
		logger.Error("could not load policies", zap.String("file", *policiesFile), zap.Error(err))
		return 1
	}

	sessionStore, err := sqldb.NewSessionStore(dbURL.Driver, sqlDB)
	if err != nil {
		logger.Error("could not create session store", zap.Error(err))
		return 1
	}

	// base

	*base = strings.Trim(*base, "/")
	if *base != "" {
		*base = "/" + *base
	}

	if err = db.Init(sessionStore, *base); err != nil {
		logger.Error("could not init", zap.Error(err))
		return 1
	}

	if err := listen(db, *listenAddr, *base); err != nil {
		logger.Error("error listening", zap.Error(err))
		return 1
	}
	return 0
}

func assemble(sqlDB *sql.DB, driver string, logger *zap.Logger) (*core.CoreDB, error) {

	entityDB, err := sqldb.NewEntityDB(sqlDB)
	if err != nil {
		return nil, err
	}

	objectDB, err := sqldb.NewObjectDB(sqlDB)
	if err != nil {
		return nil, err
	}

	userDB, err := sqldb.NewUserDB(sqlDB)
	if err != nil {
		return nil, err
	}

	return &core.CoreDB{
		EntityDB: entityDB,
		ObjectDB: objectDB,
		UserDB:   userDB,
		Logger:   logger.With(zap.String("driver", driver)),
	}, nil
}

func insertUser(db *core.CoreDB, name string, staff bool) error {

	fmt.Printf("password for user %s: ", name)
	pass1, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	fmt.Printf("repeat password: ")
	pass2, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if !bytes.Equal(pass1, pass2) {
		return fmt.Errorf("passwords don't match")
	}

	var ctx = context.Background()

	user, err := db.InsertUser(ctx, name)
	if err != nil {
		return err
	}

	if err := db.SetPassword(ctx, user, string(pass1)); err != nil {
		return fmt.Errorf("setting password: %w", err)
	}

	if staff {
		return db.SetStaff(ctx, user, true)
	}
	return nil
}

func setStaff(db *core.CoreDB, name string, staff bool) error {
	var ctx = context.Background()
	user, err := db.GetUserByName(ctx, name)
	if err != nil {
		return err
	}
	return db.SetStaff(ctx, user, staff)
}

func listen(db *core.CoreDB, addr string, base string) error {

	// golang mux recovers from panics, so the program won't crash

	var mux = http.NewServeMux()

	util.HandlePrefix(mux, base+"/api", backend.NewAPIRouter(db))
	util.HandlePrefix(mux, base+"/backend", backend.NewBackendRouter(db, base, backend.DefaultFilters()))
	mux.Handle(base+"/metrics", promhttp.Handler())
	mux.Handle(base+"/", http.RedirectHandler(base+"/backend/", http.StatusSeeOther))

	// listener and listen

	sigintChannel := make(chan os.Signal, 1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	db.Log().Info("listening", zap.String("addr", addr), zap.String("base", base))

	httpSrv := &http.Server{
		Handler:      db.SessionManager.LoadAndSave(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil {

			// don't panic, we want a graceful shutdown
			if err != http.ErrServerClosed {
				db.Log().Error("serving", zap.Error(err))
			}

			// ensure graceful shutdown
			sigintChannel <- os.Interrupt
		}
	}()

	// graceful shutdown

	signal.Notify(sigintChannel, os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	<-sigintChannel

	db.Log().Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}
