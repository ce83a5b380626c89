package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/meigma/zipgrid/build"
	"github.com/meigma/zipgrid/dataset"
	"github.com/meigma/zipgrid/internal/config"
	"github.com/meigma/zipgrid/internal/server"
	"github.com/meigma/zipgrid/registry"
)

func runBuild(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("build", "--records FILE [--grid FILE] [--out DIR]")
	records := fs.String("records", "", "CSV file with code, city, population, i and j columns")
	gridPath := fs.String("grid", "", "grid document to label and write as "+dataset.GridName)
	out := fs.StringP("out", "o", "data", "output directory")
	limit := fs.Int("limit", build.DefaultLimit, "completions kept per partial code")
	concurrency := fs.Int("concurrency", 0, "parallel shard writes (0 uses GOMAXPROCS)")
	ownPop := fs.Bool("own-population", false, "rank codes by their own population instead of their city's")
	upload := fs.Bool("upload", false, "upload the output to the configured bucket")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	if *records == "" {
		return errors.New("build: --records is required")
	}

	f, err := os.Open(*records)
	if err != nil {
		return err
	}
	recs, err := build.LoadRecords(f)
	f.Close()
	if err != nil {
		return err
	}

	opts := []build.Option{
		build.WithLimit(*limit),
		build.WithCityPopulation(!*ownPop),
		build.WithLogger(e.logger),
	}
	if *concurrency > 0 {
		opts = append(opts, build.WithConcurrency(*concurrency))
	}
	sink := build.DirSink{Dir: *out}
	report, err := build.Write(ctx, sink, recs, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %d shards with %d groups for %d records to %s\n",
		report.Shards, report.Groups, report.Records, *out)

	if *gridPath != "" {
		data, err := os.ReadFile(*gridPath)
		if err != nil {
			return err
		}
		g, err := dataset.DecodeGrid(data)
		if err != nil {
			return err
		}
		build.LabelRegions(g, recs)
		if err := build.WriteGrid(ctx, sink, g); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "wrote grid with %d regions\n", len(g.Regions))
	}

	if !*upload {
		return nil
	}
	if !e.cfg.Data.Bucket.Enabled() {
		return errors.New("build: --upload needs data.bucket in the config")
	}
	src, err := e.bucket()
	if err != nil {
		return err
	}
	if err := src.EnsureBucket(ctx); err != nil {
		return err
	}
	n, err := src.UploadDir(ctx, *out)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "uploaded %d files to %s\n", n, e.cfg.Data.Bucket.Name)
	return nil
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("serve", "[--addr ADDR] [--data DIR] [--static DIR]")
	addr := fs.String("addr", "", "listen address")
	dataDir := fs.String("data", "", "dataset directory served under /data/")
	staticDir := fs.String("static", "", "directory served for all other paths")
	origins := fs.StringSlice("cors-origin", nil, "allowed CORS origin, repeatable")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	sc := &e.cfg.Server
	if *addr != "" {
		sc.Addr = *addr
	}
	if *dataDir != "" {
		sc.DataDir = *dataDir
	}
	if *staticDir != "" {
		sc.StaticDir = *staticDir
	}
	sc.CORSOrigins = append(sc.CORSOrigins, *origins...)

	data := &e.cfg.Data
	if !data.Bucket.Enabled() && data.Dir == "" && data.BaseURL == "" {
		data.Dir = sc.DataDir
	}
	m, closeCache, err := e.model(ctx)
	if err != nil {
		return err
	}
	defer closeCache()
	if err := m.Index().LoadRoot(ctx); err != nil {
		e.logger.Warn("root shard unavailable, lookups will retry on demand", "error", err)
	}

	srv := server.New(m.Index(),
		server.WithDataDir(sc.DataDir),
		server.WithStaticDir(sc.StaticDir),
		server.WithCORSOrigins(sc.CORSOrigins...),
		server.WithLogger(e.logger),
	)
	return srv.Run(ctx, sc.Addr, sc.ShutdownTimeout)
}

// parseLookup parses the flags shared by resolve and suggest and returns
// the positional arguments. --dir and --base-url replace the configured
// data source.
func (e *env) parseLookup(name, usage string, args []string) ([]string, error) {
	fs := e.flagSet(name, usage)
	dir := fs.String("dir", "", "dataset directory")
	baseURL := fs.String("base-url", "", "dataset base URL")
	if err := e.parse(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, fmt.Errorf("%s: no arguments", name)
	}
	switch {
	case *dir != "":
		e.cfg.Data = config.Data{Dir: *dir}
	case *baseURL != "":
		e.cfg.Data = config.Data{
			BaseURL:   *baseURL,
			RateLimit: e.cfg.Data.RateLimit,
			Burst:     e.cfg.Data.Burst,
		}
	}
	return fs.Args(), nil
}

func runResolve(ctx context.Context, e *env, args []string) error {
	codes, err := e.parseLookup("resolve", "[--dir DIR | --base-url URL] CODE...", args)
	if err != nil {
		return err
	}
	m, closeCache, err := e.model(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tI\tJ\tFOUND")
	for _, code := range codes {
		loc, err := m.Index().ResolveContext(ctx, code)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%t\n", code, loc.I, loc.J, loc.Found)
	}
	return tw.Flush()
}

func runSuggest(ctx context.Context, e *env, args []string) error {
	partials, err := e.parseLookup("suggest", "[--dir DIR | --base-url URL] PARTIAL...", args)
	if err != nil {
		return err
	}
	m, closeCache, err := e.model(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	for _, partial := range partials {
		s, err := m.Index().SuggestContext(ctx, partial)
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Fprintf(e.stdout, "%s: no matches\n", partial)
			continue
		}
		fmt.Fprintf(e.stdout, "%s: %d regions\n", partial, len(s.Coords))
		for _, c := range s.Candidates {
			fmt.Fprintf(e.stdout, "  %s %s (%d,%d)\n", c.Code, c.Name, c.I, c.J)
		}
	}
	return nil
}

func runPush(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("push", "DIR REF")
	annotations := fs.StringToString("annotation", nil, "manifest annotation key=value, repeatable")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("push: need DIR and REF")
	}
	dir, ref := fs.Arg(0), fs.Arg(1)

	client, err := e.registryClient(ref)
	if err != nil {
		return err
	}
	desc, err := client.Push(ctx, ref, dir, registry.WithAnnotations(*annotations))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s@%s\n", ref, desc.Digest)
	return nil
}

func runPull(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("pull", "REF DEST")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("pull: need REF and DEST")
	}
	ref, dest := fs.Arg(0), fs.Arg(1)

	client, err := e.registryClient(ref)
	if err != nil {
		return err
	}
	desc, err := client.Pull(ctx, ref, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "pulled %s into %s\n", desc.Digest, dest)
	return nil
}
