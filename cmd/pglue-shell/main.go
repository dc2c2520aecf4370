// Command pglue-shell is a tiny line-oriented REPL over a single Wire:
// each line of stdin runs as a simple query, printing its command tag
// and any rows.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pglue/engine"
	"pglue/errs"
	"pglue/options"
	"pglue/query"
	"pglue/version"
)

func main() {
	verbose := flag.Bool("verbose", false, "log every wire event to stderr")
	flag.Parse()

	opts := options.FromEnv()
	if *verbose {
		opts.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		opts.Verbose = true
	}

	log.Printf("%s connecting to %s@%s:%d/%s", version.String(), opts.User, opts.Host, opts.Port, opts.Database)

	w := engine.New(opts)
	w.OnNotice(func(ev engine.NoticeEvent) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", ev.Severity, ev.Message)
	})
	w.OnClose(func(reason error) {
		if reason != nil {
			log.Printf("connection closed: %v", reason)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		w.Close(true)
		os.Exit(0)
	}()

	runREPL(w)
}

func runREPL(w *engine.Wire) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("pglue> ")
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			runLine(w, line)
		}
		fmt.Print("pglue> ")
	}
}

func runLine(w *engine.Wire, line string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, tag, err := query.NewText(w, line).Simple().Collect(ctx)
	if err != nil {
		var pgErr *errs.PostgresError
		if errors.As(err, &pgErr) {
			fmt.Fprintf(os.Stderr, "ERROR: %s (%s)\n", pgErr.Message, pgErr.Code)
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	for _, r := range rows {
		fmt.Println(r.Values())
	}
	if tag != "" {
		fmt.Println(tag)
	}
}
