package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lucasjlepore/fitlog"
	"github.com/lucasjlepore/fitlog/config"
	"github.com/lucasjlepore/fitlog/fitdecode"
	"github.com/lucasjlepore/fitlog/pipeline"
	"github.com/lucasjlepore/fitlog/server"
	"github.com/lucasjlepore/fitlog/store"
)

const usage = `Usage: fitlog [-config fitlog.yaml] <command> [args]

Commands:
  import <file|dir>...      import FIT files into the workout log
  list [-type t] [-tag t]   list stored workouts
  show <id>                 print a workout summary
  stats                     print totals and personal records
  export <id> -out dir      write workout.json, gps.json, chart.json and sensor samples
  parse <file>              parse a FIT file and print it as JSON (no database)
  dump <file> -out dir      write every decoded FIT message as JSON lines
  serve                     run the HTTP API
`

type app struct {
	cfg *config.Config
	log *slog.Logger
	dec *fitdecode.Decoder
}

func main() {
	configPath := flag.String("config", "fitlog.yaml", "path to config file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitlog: load config: %v\n", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	a := &app{cfg: cfg, log: log, dec: fitdecode.New(log)}

	ctx := context.Background()
	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "import":
		err = a.runImport(ctx, args)
	case "list":
		err = a.runList(ctx, args)
	case "show":
		err = a.runShow(ctx, args)
	case "stats":
		err = a.runStats(ctx)
	case "export":
		err = a.runExport(ctx, args)
	case "parse":
		err = a.runParse(args)
	case "dump":
		err = a.runDump(args)
	case "serve":
		err = a.runServe(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitlog %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func (a *app) openStore(ctx context.Context) (*store.DB, error) {
	db, err := store.Open(ctx, a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.log.Debug("database opened", "path", a.cfg.Database.Path)
	return db, nil
}

func (a *app) importer(db *store.DB) *pipeline.Importer {
	return &pipeline.Importer{
		Parser:     fitlog.NewParser(a.dec, a.log),
		Store:      db,
		Workers:    a.cfg.Import.Workers,
		Extensions: a.cfg.Import.Extensions,
		Log:        a.log,
	}
}

func (a *app) runImport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("at least one file or folder is required")
	}
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	im := a.importer(db)

	var (
		results []pipeline.UploadResult
		files   []string
	)
	for _, p := range args {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			results = append(results, im.ImportFolder(ctx, p)...)
			continue
		}
		files = append(files, p)
	}
	if len(files) > 0 {
		results = append(results, im.ImportFiles(ctx, files)...)
	}

	var imported, duplicates, failed int
	for _, r := range results {
		switch {
		case r.Success:
			imported++
			fmt.Printf("ok         %s  %s\n", r.WorkoutID, r.Path)
		case r.Duplicate:
			duplicates++
			fmt.Printf("duplicate  %s\n", r.Path)
		default:
			failed++
			fmt.Printf("failed     %s: %s\n", r.Path, r.Message)
		}
	}
	fmt.Printf("%d imported, %d duplicates, %d failed\n", imported, duplicates, failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func (a *app) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var f store.Filter
	fs.StringVar(&f.WorkoutType, "type", "", "workout type")
	fs.StringVar(&f.Tag, "tag", "", "tag")
	fs.StringVar(&f.Search, "search", "", "name or filename substring")
	fs.IntVar(&f.Page, "page", 1, "page number")
	fs.IntVar(&f.PerPage, "n", 20, "workouts per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	workouts, err := db.List(ctx, f)
	if err != nil {
		return err
	}
	total, err := db.Count(ctx, f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tTYPE\tDURATION\tDISTANCE\tNAME")
	for _, w := range workouts {
		start := "-"
		if w.StartTime != nil {
			start = w.StartTime.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			w.ID, start, deref(w.WorkoutType, "unknown"),
			fmtDuration(w.DurationSeconds), fmtKm(w.DistanceMeters), deref(w.Name, ""))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d of %d workouts\n", len(workouts), total)
	return nil
}

func (a *app) runShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <id>")
	}
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := db.Load(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(fitlog.Summary(w))
	return nil
}

func (a *app) runStats(ctx context.Context) error {
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	records, err := db.PersonalRecords(ctx)
	if err != nil {
		return err
	}
	breakdown, err := db.ActivityBreakdown(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Workouts:       %d\n", stats.TotalWorkouts)
	fmt.Printf("Distance:       %.1f km\n", stats.TotalDistanceKm)
	fmt.Printf("Time:           %.1f h\n", stats.TotalDurationHours)
	fmt.Printf("Calories:       %d kcal\n", stats.TotalCalories)
	fmt.Printf("Current streak: %d days\n", stats.CurrentStreakDays)
	fmt.Printf("Active days:    %d in the last year\n", stats.ActiveDaysLastYear)
	fmt.Println()
	fmt.Printf("Longest:        %.1f km\n", records.MaxDistanceKm)
	fmt.Printf("Longest time:   %.1f h\n", records.MaxDurationHours)
	fmt.Printf("Max HR:         %d bpm\n", records.MaxHeartRate)
	fmt.Printf("Top speed:      %.1f km/h\n", records.MaxSpeedKmh)
	fmt.Printf("Most climbing:  %.0f m\n", records.MaxElevationGainM)
	if len(breakdown) > 0 {
		fmt.Println()
		for _, tc := range breakdown {
			fmt.Printf("%-22s %d\n", tc.Name, tc.Count)
		}
	}
	return nil
}

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	outDir := fs.String("out", "", "output directory")
	format := fs.String("format", a.cfg.Export.Format, "sensor sample format: parquet|csv")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: export <id> -out dir")
	}
	id := fs.Arg(0)
	if strings.TrimSpace(*outDir) == "" {
		*outDir = filepath.Join(".", "exports", id)
	}

	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := db.Load(ctx, id)
	if err != nil {
		return err
	}
	res, err := pipeline.Export(w, *outDir, *format)
	if err != nil {
		return err
	}
	fmt.Printf("Output dir:     %s\n", res.OutputDir)
	fmt.Printf("workout.json:   %s\n", res.WorkoutPath)
	fmt.Printf("gps.json:       %s\n", res.GPSPath)
	fmt.Printf("chart.json:     %s\n", res.ChartPath)
	fmt.Printf("sensor samples: %s\n", res.SensorsPath)
	return nil
}

func (a *app) runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	device := fs.Bool("device", false, "include the recording device")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: parse <file>")
	}
	path := fs.Arg(0)

	w, err := fitlog.NewParser(a.dec, a.log).ParseFile(path)
	if err != nil {
		return err
	}

	var out any = w
	if *device {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dev, err := fitdecode.ReadDevice(data)
		if err != nil {
			a.log.Warn("device not readable", "path", path, "error", err)
		}
		out = struct {
			*fitlog.ParsedWorkout
			Device *fitdecode.Device `json:"device"`
		}{w, dev}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	outDir := fs.String("out", "", "output directory")
	overwrite := fs.Bool("overwrite", false, "allow writing into a non-empty directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: dump <file> -out dir")
	}
	path := fs.Arg(0)
	if strings.TrimSpace(*outDir) == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		*outDir = filepath.Join(".", "exports", base+"_messages")
	}

	m, err := pipeline.Dump(a.dec, path, *outDir, *overwrite)
	if err != nil {
		return err
	}
	fmt.Printf("Output dir:  %s\n", *outDir)
	fmt.Printf("Messages:    %d (%d definitions)\n", m.Messages, m.Definitions)
	if m.TrailingBytes > 0 {
		fmt.Printf("Trailing:    %d bytes ignored\n", m.TrailingBytes)
	}
	return nil
}

func (a *app) runServe(ctx context.Context) error {
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, a.importer(db), a.cfg.Server.AllowedOrigins, a.log)
	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.log.Info("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("shutdown error", "error", err)
	}
	a.log.Info("server stopped")
	return nil
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func fmtDuration(secs *int64) string {
	if secs == nil {
		return "-"
	}
	d := time.Duration(*secs) * time.Second
	return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func fmtKm(m *float64) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f km", *m/1000)
}
