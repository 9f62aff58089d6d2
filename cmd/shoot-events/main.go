package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/gardenhub/shoot-events/auth"
	"github.com/gardenhub/shoot-events/config"
	"github.com/gardenhub/shoot-events/filter"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/ingest"
	"github.com/gardenhub/shoot-events/journal"
	"github.com/gardenhub/shoot-events/persistence"
	"github.com/gardenhub/shoot-events/services"
	"github.com/gardenhub/shoot-events/shoots"
	"github.com/gardenhub/shoot-events/watches"
	"github.com/gardenhub/shoot-events/ws"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "ws service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()
	log.SetFlags(0)

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.NewGormStore(globalConfig)
	if err != nil {
		panic(err)
	}
	if store == nil {
		panic("no persistence configured")
	}
	defer store.Close()

	authenticator, err := auth.NewOIDCAuthenticator(ctx, &globalConfig.AuthConfig)
	if err != nil {
		panic(err)
	}

	filters, err := filter.FromConfig(globalConfig.FilterConfigs)
	if err != nil {
		panic(err)
	}

	admins := services.NewAdministratorsService(store, globalConfig.Admins)
	projects := services.NewProjectService(store, admins)

	shootStore := shoots.NewStore()

	journalCache, err := journal.NewCache()
	if err != nil {
		panic(err)
	}
	defer journalCache.Close()
	commentSource, err := journal.NewCommentSource(store, journalCache, globalConfig.JournalConfig.CommentPageSize, globalConfig.JournalConfig.CommentCacheSize)
	if err != nil {
		panic(err)
	}
	syncer := journal.NewSyncer(journalCache, store, globalConfig.JournalConfig.CronSpec())
	if err := syncer.Start(); err != nil {
		panic(err)
	}
	defer syncer.Stop()

	authTimeout := globalConfig.AuthConfig.Timeout()
	shootsHub := ws.NewHub(ws.NamespaceShoots, authenticator, authTimeout, ws.Services{
		Shoots:   shootStore,
		Projects: projects,
		Admins:   admins,
		Filters:  filters,
	})
	journalsHub := ws.NewHub(ws.NamespaceJournals, authenticator, authTimeout, ws.Services{
		Projects: projects,
		Admins:   admins,
		Journal:  journalCache,
		Comments: services.NewCommentSource(commentSource),
	})
	go shootsHub.Run()
	go journalsHub.Run()

	dispatcher := watches.NewDispatcher()
	dispatcher.Register("shoots", watches.NewShootsSource(shootsHub, shootStore.Events(), filters).Attach)
	dispatcher.Register("journals", watches.NewJournalSource(journalsHub, journalCache, syncer.Events()).Attach)
	dispatcher.Start(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/api/events/shoots", shootsHub.HandleConnection).Methods(http.MethodGet)
	router.HandleFunc("/api/events/journals", journalsHub.HandleConnection).Methods(http.MethodGet)
	ingest.NewHandler(globalConfig.IngestToken, shootStore, store, syncer).Register(router)
	http.Handle("/", router)

	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}
