package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/apereo/cas-sub043/auth"
	"github.com/apereo/cas-sub043/cas"
	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/registry"
	"github.com/apereo/cas-sub043/ticket"
)

var (
	Version     string // set with build flags
	BuildNumber string // set with build flags
)

func main() {
	var (
		confPath = flag.String("conf", "conf/cas.json", "Server configuration file path")
		profile  = flag.Bool("profile", false, "Enable the HTTP server for runtime profiling")
		version  = flag.Bool("version", false, "Show the server API version")
	)
	flag.Parse()
	if *version {
		fmt.Println(Version)
		return
	}
	log.Printf("Starting Central Authentication Service")

	if Version != "" {
		log.Printf("Version: %s", Version)
	}
	if BuildNumber != "" {
		log.Printf("Build Number: %s", BuildNumber)
	}

	common.SetVersion(Version)

	if *profile {
		log.Println("Starting runtime profiling server")
		go func() { log.Println(http.ListenAndServe("0.0.0.0:6060", nil)) }()
	}

	// Load Config File
	conf, err := loadConfig(confPath)
	if err != nil {
		log.Panicf("Config File: %s\n", err)
	}

	if conf.ServiceID == "" {
		conf.ServiceID = uuid.NewV4().String()
		log.Printf("Service ID not set. Generated new UUID: %s", conf.ServiceID)
	}

	// Setup the ticket registry backend
	var (
		regStorage registry.Storage
		closers    []func() error
	)
	switch conf.Registry.Backend.Type {
	case registry.MEMORY:
		regStorage = registry.NewMemoryStorage()
	case registry.LEVELDB:
		storage, closeReg, err := registry.NewLevelDBStorage(conf.Registry.Backend.DSN, nil)
		if err != nil {
			log.Panicf("Failed to start LevelDB: %s\n", err)
		}
		regStorage = storage
		closers = append(closers, closeReg)
	}

	// Cluster replication
	if conf.Registry.Replication.Enabled {
		replicated, closeRep, err := registry.NewReplicatedStorage(regStorage, conf.Registry.Replication, conf.ServiceID)
		if err != nil {
			log.Panicf("Failed to start registry replication: %s\n", err)
		}
		regStorage = replicated
		closers = append(closers, closeRep)
		log.Printf("Registry replication enabled via %s", conf.Registry.Replication.BrokerURL)
	}

	// Expired-ticket sweep
	sweeper := registry.NewSweeper(regStorage, time.Duration(conf.Registry.SweepInterval)*time.Second)
	sweeper.Start()

	// Authentication pipeline
	manager := auth.NewManager(
		[]auth.Handler{auth.NewAcceptUsersHandler(conf.Auth.Users)},
		[]auth.Resolver{&auth.UsernamePasswordResolver{}},
		[]auth.Populator{auth.RememberMePopulator{}, auth.MethodPopulator{}},
	)

	// Ticket policies
	tgtPolicy := ticket.TimeToLive{
		MaxLifetime: time.Duration(conf.Tickets.TGT.MaxLifetimeSeconds) * time.Second,
		MaxIdle:     time.Duration(conf.Tickets.TGT.MaxIdleSeconds) * time.Second,
	}
	stPolicy := ticket.MultiUseOrTimeout{
		MaxUses: conf.Tickets.ST.MaxUses,
		Timeout: time.Duration(conf.Tickets.ST.TimeoutSeconds) * time.Second,
	}

	// Central authentication service and its API
	service := cas.New(regStorage, manager, ticket.NewGenerator(), tgtPolicy, stPolicy, tgtPolicy)
	ticketAPI := cas.NewAPI(service)

	// Start server
	go startHTTPServer(conf, ticketAPI)

	// Ctrl+C / Kill handling
	handler := make(chan os.Signal, 1)
	signal.Notify(handler, os.Interrupt, syscall.SIGTERM)

	<-handler
	log.Println("Shutting down...")

	sweeper.Stop()
	for _, close := range closers {
		if err := close(); err != nil {
			log.Println(err.Error())
		}
	}

	log.Println("Stopped.")
}

func startHTTPServer(conf *common.Config, ticketAPI *cas.API) {
	router := newRouter()
	// api root
	router.handle(http.MethodGet, "/", indexHandler)
	// ticket api
	router.handle(http.MethodGet, common.TicketAPILoc, ticketAPI.Index)
	router.handle(http.MethodPost, common.TicketAPILoc, ticketAPI.Create)
	router.handle(http.MethodPost, common.TicketAPILoc+"/{id:.+}/services", ticketAPI.Grant)
	router.handle(http.MethodDelete, common.TicketAPILoc+"/{id:.+}", ticketAPI.Destroy)
	router.handle(http.MethodPost, common.ValidateAPILoc, ticketAPI.Validate)
	router.handle(http.MethodPost, common.ProxyAPILoc, ticketAPI.Delegate)

	// start http server
	serverUrl := fmt.Sprintf("%s:%d", conf.HTTP.BindAddr, conf.HTTP.BindPort)
	log.Printf("Serving HTTP requests on %s", serverUrl)
	err := http.ListenAndServe(serverUrl, router.chained())
	if err != nil {
		log.Fatalln(err)
	}
}
