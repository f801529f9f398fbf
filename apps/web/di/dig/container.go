package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoweb "github.com/trezcool/academia/apps/web/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
	identitysvc "github.com/trezcool/academia/services/identity"
	logsvc "github.com/trezcool/academia/services/logger"
	metricsvc "github.com/trezcool/academia/services/metrics"
	"github.com/trezcool/academia/storage/database"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	postgrestrepos "github.com/trezcool/academia/storage/postgrest"
	inmemstore "github.com/trezcool/academia/storage/session/inmem"
	redisstore "github.com/trezcool/academia/storage/session/redis"
)

// record store drivers
const (
	DriverPostgrest = "postgrest"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage holds the repositories the app reads and writes.
type Storage struct {
	Profiles auth.ProfileRepository
	Courses  course.Repository
	Sessions auth.SessionRepository

	closers []func() error
}

// Close releases the connections opened for the repositories.
func (s *Storage) Close() error {
	var errs []string
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New("closing storage: " + strings.Join(errs, "; "))
	}
	return nil
}

type ServerParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Sessions   *echoweb.Sessions
	Courses    *course.Service
	Metrics    *metricsvc.Metrics
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "WEB : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newStorage opens the record store of conf.Database.Driver and the session store.
// Sessions are kept in Redis when an address is configured, in memory otherwise.
func newStorage(conf *core.Config, loggerParam DBLoggerParam) *Storage {
	logger := loggerParam.Logger
	st := new(Storage)

	switch driver := conf.Database.Driver; driver {
	case DriverPostgrest, "":
		client, err := postgrestrepos.NewClientFromConfig(conf)
		if err != nil && !conf.IsDemoMode() {
			logger.Fatal(fmt.Sprintf("setting up record store: %v", err), err)
		}
		if client == nil { // demo mode: nothing is ever read
			st.Profiles, st.Courses = newMemoryRepositories()
			break
		}
		st.Profiles = postgrestrepos.NewProfileRepository(client)
		st.Courses = postgrestrepos.NewCourseRepository(client)
	case DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		db, err := database.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		st.closers = append(st.closers, db.Close)
		st.Profiles = sqlxrepos.NewProfileRepository(db)
		st.Courses = sqlxrepos.NewCourseRepository(db)
	case DriverMemory:
		st.Profiles, st.Courses = newMemoryRepositories()
	default:
		logger.Fatal(fmt.Sprintf("unknown database driver %q", driver))
	}

	if conf.Redis.Address != "" {
		client, err := redisstore.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up session store: %v", err), err)
		}
		st.closers = append(st.closers, client.Close)
		st.Sessions = redisstore.NewSessionRepository(client, conf.Redis.SessionTTL)
	} else {
		logger.Warn("no redis address configured: sessions are lost on restart")
		st.Sessions = inmemstore.NewSessionRepository()
	}
	return st
}

func newMemoryRepositories() (auth.ProfileRepository, course.Repository) {
	db := inmemdb.Open()
	return inmemdb.NewProfileRepository(db), inmemdb.NewCourseRepository(db)
}

func newCourseService(st *Storage) *course.Service {
	return course.NewService(st.Courses)
}

// newStoreFunc builds the Store of each browser session, instrumented with m.
// Stores run in demo mode while the identity provider is not configured.
func newStoreFunc(conf *core.Config, logger core.Logger, st *Storage, m *metricsvc.Metrics) echoweb.NewStoreFunc {
	if conf.IsDemoMode() {
		logger.Warn("Supabase is not configured: running in demo mode")
		return func(string) (*auth.Store, func()) {
			return auth.NewStore(auth.StoreDeps{Demo: true, Logger: logger}), nil
		}
	}

	factory := identitysvc.NewFactoryFromConfig(conf, st.Sessions, logger)
	profiles := metricsvc.InstrumentProfiles(st.Profiles, m)
	return func(id string) (*auth.Store, func()) {
		provider := factory.New(id)
		store := auth.NewStore(auth.StoreDeps{
			Provider: metricsvc.InstrumentProvider(provider, m),
			Profiles: profiles,
			Logger:   logger,
		})
		return store, func() { _ = provider.Close() }
	}
}

func newSessions(conf *core.Config, newStore echoweb.NewStoreFunc, m *metricsvc.Metrics) *echoweb.Sessions {
	return echoweb.NewSessions(newStore, conf.Server.SessionIdleTimeout, m.ActiveSessions)
}

func newServer(p ServerParams) *echoweb.Server {
	return echoweb.NewServer(echoweb.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Sessions:   p.Sessions,
		Courses:    p.Courses,
		Metrics:    p.Metrics,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(metricsvc.NewMetrics))
	must(c.Provide(newCourseService))
	must(c.Provide(newStoreFunc))
	must(c.Provide(newSessions))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
