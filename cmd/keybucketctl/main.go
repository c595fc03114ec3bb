// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Command keybucketctl is the offline migration coordinator: it drives
// RCTRANSSERVER/RCTRANSBEGIN/RCTRANSEND for a range of buckets against
// a running keybucketd from outside the process, the "external
// coordinator" the core's Non-goals assume exists. It also provides a
// hashfile subcommand mirroring the reference tool that prints each key
// in a keyfile next to the bucket it hashes to.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/aristanetworks/keybucket/khash"
	"github.com/aristanetworks/keybucket/sync/semaphore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "hashfile":
		runHashfile(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keybucketctl hashfile [-buckets N] <keyfile>")
	fmt.Fprintln(os.Stderr, "       keybucketctl migrate -addr host:port -start N -end N [-concurrency N]")
}

// runHashfile reads a keyfile of "KEYNAME TTL" lines and prints each key
// next to the bucket id it hashes to, the way the reference
// get_keyfile_hashval tool does.
func runHashfile(args []string) {
	fs := flag.NewFlagSet("hashfile", flag.ExitOnError)
	buckets := fs.Uint("buckets", 420000, "bucket count B")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyfile does not exist: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		key := fields[0]
		if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
			continue
		}
		bucketID := khash.Bucket([]byte(key), uint32(*buckets))
		fmt.Printf("%s %d\n", key, bucketID)
	}
}

// runMigrate drives a bucket range's transfer-out sequence against a
// live server over a line-oriented connection, bounding how many
// buckets are in flight at once with a weighted semaphore and retrying
// transient dial failures with exponential backoff.
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	addr := fs.String("addr", "localhost:6400", "keybucketd address")
	start := fs.Uint("start", 0, "first bucket id")
	end := fs.Uint("end", 0, "last bucket id (inclusive)")
	concurrency := fs.Int64("concurrency", 4, "buckets to transfer concurrently")
	fs.Parse(args)

	sem := semaphore.NewWeighted(*concurrency)
	var g errgroup.Group
	ctx := context.Background()
	for id := *start; id <= *end; id++ {
		id := id
		if err := sem.Acquire(ctx, 1); err != nil {
			fmt.Fprintf(os.Stderr, "acquiring semaphore: %v\n", err)
			os.Exit(1)
		}
		g.Go(func() error {
			defer sem.Release(1)
			return transferBucket(*addr, id)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("migrated buckets [%d,%d]\n", *start, *end)
}

// transferBucket runs transserver/transbegin/transend for a single
// bucket on its own connection so failures are isolated per bucket; a
// session's role only lives as long as its connection, so transserver
// must be reissued on every new connection.
func transferBucket(addr string, id uint) error {
	client, err := dialWithRetry(addr)
	if err != nil {
		return fmt.Errorf("bucket %d: dialing: %w", id, err)
	}
	defer client.Close()

	if _, err := client.do("RCTRANSSERVER", "out"); err != nil {
		return fmt.Errorf("bucket %d: transserver: %w", id, err)
	}

	idStr := strconv.FormatUint(uint64(id), 10)
	if _, err := client.do("RCTRANSBEGIN", "out", idStr, idStr); err != nil {
		return fmt.Errorf("bucket %d: transbegin: %w", id, err)
	}
	if _, err := client.do("RCTRANSEND", "out", idStr, idStr); err != nil {
		return fmt.Errorf("bucket %d: transend: %w", id, err)
	}
	return nil
}

func dialWithRetry(addr string) (*ctlClient, error) {
	var client *ctlClient
	op := func() error {
		c, err := newCtlClient(addr)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return client, nil
}
