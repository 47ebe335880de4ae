// Command seed replaces every stored link with randomly generated ones.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/sundayezeilo/linkpool/internal/app"
)

func main() {
	count := flag.Int("count", 100, "number of random links to insert")
	flag.Parse()

	if err := run(*count); err != nil {
		log.Fatal(err)
	}
}

func run(count int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Shutdown() }()

	n, err := application.Service.Seed(ctx, count)
	if err != nil {
		return err
	}

	application.Logger.Info("seeded links", "count", n)
	return nil
}
