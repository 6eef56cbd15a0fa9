// Package main imports or deletes development data.
//
// It opens the store the server is configured for through the same
// environment variables and .env file.
//
// Usage:
//
//	go run ./cmd/seed --import [--dir dev-data]
//	go run ./cmd/seed --delete
//
// Stop the server first when using the badger store; it holds the data
// directory lock.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/di/providers"
	"github.com/tourbook/tourbook-server/internal/logger"
	"github.com/tourbook/tourbook-server/internal/seed"
	"github.com/tourbook/tourbook-server/internal/service"
)

func main() {
	importData := flag.Bool("import", false, "Import development data")
	deleteData := flag.Bool("delete", false, "Delete all data")
	dir := flag.String("dir", "dev-data", "Directory holding tours.json, users.json and reviews.json")
	flag.Parse()

	if *importData == *deleteData {
		fmt.Fprintln(os.Stderr, "specify exactly one of --import or --delete")
		flag.Usage()
		os.Exit(2)
	}

	injector := do.New()
	do.Provide(injector, func(do.Injector) (*config.Config, error) { return config.Load(nil) })
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideTourService)
	do.Provide(injector, providers.ProvideReviewService)

	if err := run(injector, *importData, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		injector.Shutdown()
		os.Exit(1)
	}
	injector.Shutdown()
}

func run(injector do.Injector, importData bool, dir string) error {
	storeHandle, err := do.Invoke[*providers.StoreHandle](injector)
	if err != nil {
		return err
	}
	tours, err := do.Invoke[*service.TourService](injector)
	if err != nil {
		return err
	}
	reviews, err := do.Invoke[*service.ReviewService](injector)
	if err != nil {
		return err
	}
	log := do.MustInvoke[*logger.Logger](injector)

	seeder := seed.New(storeHandle.Store, tours, reviews, log.Logger)
	ctx := context.Background()

	var counts seed.Counts
	if importData {
		counts, err = seeder.Import(ctx, dir)
	} else {
		counts, err = seeder.Delete(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("tours: %d, users: %d, reviews: %d\n", counts.Tours, counts.Users, counts.Reviews)
	return nil
}
