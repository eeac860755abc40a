package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dd0wney/cluso-lineage/pkg/catalog"
)

// catalogFlags select the catalog an analysis reads from. Exactly one source
// must be set.
type catalogFlags struct {
	fixture   string
	url       string
	database  string
	rateLimit float64
	burst     int
	headers   []string
	pageSize  int
}

func (f *catalogFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.fixture, "catalog", "", "Path to a YAML/JSON catalog fixture")
	fs.StringVar(&f.url, "catalog-url", "", "Base URL of a REST lineage catalog")
	fs.StringVar(&f.database, "catalog-db", "", "PostgreSQL URL of a lineage catalog database")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Max catalog requests per second (REST only, 0 = unlimited)")
	fs.IntVar(&f.burst, "rate-burst", 1, "Burst size for --rate-limit")
	fs.StringArrayVar(&f.headers, "header", nil, "Extra request header for the REST catalog, as Key: Value")
	fs.IntVar(&f.pageSize, "page-size", 0, "Relationship page size (fixture and database only)")
}

func (f *catalogFlags) sources() int {
	n := 0
	for _, s := range []string{f.fixture, f.url, f.database} {
		if s != "" {
			n++
		}
	}
	return n
}

// open connects to the selected catalog. The returned close func is never nil.
func (f *catalogFlags) open(ctx context.Context) (catalog.Gateway, func(), error) {
	noop := func() {}

	switch f.sources() {
	case 0:
		return nil, noop, errors.New("no catalog given: set one of --catalog, --catalog-url or --catalog-db")
	case 1:
	default:
		return nil, noop, errors.New("--catalog, --catalog-url and --catalog-db are mutually exclusive")
	}

	switch {
	case f.fixture != "":
		fx, err := catalog.LoadFixture(f.fixture)
		if err != nil {
			return nil, noop, err
		}
		var opts []catalog.MemoryOption
		if f.pageSize > 0 {
			opts = append(opts, catalog.WithPageSize(f.pageSize))
		}
		return catalog.NewMemoryGatewayFromFixture(fx, opts...), noop, nil

	case f.url != "":
		opts := []catalog.HTTPOption{catalog.WithRateLimit(f.rateLimit, f.burst)}
		for _, h := range f.headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, noop, fmt.Errorf("invalid --header %q: want Key: Value", h)
			}
			opts = append(opts, catalog.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
		}
		gw, err := catalog.NewHTTPGateway(f.url, opts...)
		if err != nil {
			return nil, noop, err
		}
		return gw, noop, nil

	default:
		gw, err := catalog.NewPGGateway(ctx, f.database)
		if err != nil {
			return nil, noop, err
		}
		if f.pageSize > 0 {
			gw.SetPageSize(f.pageSize)
		}
		return gw, gw.Close, nil
	}
}
