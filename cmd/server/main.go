package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"patchwork.studio/internal/catalogs"
	"patchwork.studio/internal/persistence/indexdb"
	"patchwork.studio/internal/persistence/journal"
	"patchwork.studio/internal/transport/api"
	"patchwork.studio/internal/transport/ws"
	"patchwork.studio/internal/tuning"
)

func main() {
	var (
		configPath  = flag.String("config", "./configs/patchwork.yaml", "path to patchwork.yaml (empty for defaults)")
		addr        = flag.String("addr", "", "http listen address (overrides listen_addr)")
		patternsDir = flag.String("patterns", "", "block pattern directory (overrides patterns_dir)")
		savesDir    = flag.String("saves", "", "save directory (overrides saves_dir)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite save index")
		noJournal   = flag.Bool("disable_journal", false, "disable the edit journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load config: %v", err)
		}
		logger.Printf("config not found (%s); using defaults", *configPath)
		tune = tuning.Defaults()
	}
	override(&tune.ListenAddr, *addr)
	override(&tune.PatternsDir, *patternsDir)
	override(&tune.SavesDir, *savesDir)
	if err := tune.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	cat := catalogs.Load(tune.PatternsDir, logger)
	if err := cat.Preload(); err != nil {
		// Broken files stay listed and fail on use.
		logger.Printf("catalog: %v", err)
	}
	logger.Printf("catalog: %d blocks from %s", cat.Len(), tune.PatternsDir)

	var idx *indexdb.SQLiteIndex
	if !*disableDB && tune.IndexDB != "" {
		idx, err = indexdb.OpenSQLite(tune.IndexDB)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalog(context.Background(), cat); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
	}

	var jw *journal.Writer
	if !*noJournal && tune.JournalDir != "" {
		jw = journal.NewWriter(tune.JournalDir, "edits")
		defer jw.Close()
	}

	wsSrv := ws.NewServer(ws.Options{
		Catalog:       cat,
		Index:         idx,
		Journal:       jw,
		SavesDir:      tune.SavesDir,
		CompressSaves: tune.CompressSaves,
		KeepVersions:  tune.KeepVersions,
		Defaults:      tune.DefaultQuilt,
		WebSocket:     tune.WebSocket,
		Logger:        logger,
	})
	router := api.NewRouter(api.Options{Catalog: cat, Index: idx, WS: wsSrv, Logger: logger})

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              tune.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", tune.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func override(dst *string, flagValue string) {
	if v := strings.TrimSpace(flagValue); v != "" {
		*dst = v
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
