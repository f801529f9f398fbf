package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	identitysvc "github.com/trezcool/academia/services/identity"
	logsvc "github.com/trezcool/academia/services/logger"
	postgrestrepos "github.com/trezcool/academia/storage/postgrest"
	inmemstore "github.com/trezcool/academia/storage/session/inmem"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)
	defer appLogger.Close()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	auth.InitValidators(validate, translator)

	cli := commandLine{
		newStore:   newStoreFunc(conf, appLogger),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
		settle:     conf.Server.SettleTimeout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		appLogger.Close()
		os.Exit(1)
	}
}

// newStoreFunc returns Stores talking to the configured Supabase project.
// Sessions live in memory: each command signs in from scratch.
func newStoreFunc(conf *core.Config, appLogger core.Logger) NewStoreFunc {
	if conf.IsDemoMode() {
		return func() (*auth.Store, func()) {
			return auth.NewStore(auth.StoreDeps{Demo: true}), nil
		}
	}

	client, err := postgrestrepos.NewClientFromConfig(conf)
	errAndDie(err)
	profiles := postgrestrepos.NewProfileRepository(client)
	factory := identitysvc.NewFactoryFromConfig(conf, inmemstore.NewSessionRepository(), appLogger)

	return func() (*auth.Store, func()) {
		provider := factory.New("admin")
		store := auth.NewStore(auth.StoreDeps{Provider: provider, Profiles: profiles, Logger: appLogger})
		return store, func() { _ = provider.Close() }
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
