// Command labdemo drives a one-shot workload against a file-backed
// buffer pool and B+ tree index: load a batch of keys, look one up, scan
// the whole tree, or remove one key, then exit. The load and scan
// commands also report buffer-pool statistics. It is a diagnostic
// harness, not an interactive database shell.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"corebase"
	"corebase/buffer"
	"corebase/disk"
	"corebase/index"
	"corebase/storage/page"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "labdemo",
	Short: "Drive a one-shot workload against the storage engine lab",
}

func openTree() (*buffer.Pool, *index.BTree[int64], func()) {
	cfg := corebase.DefaultConfig()
	dm, err := disk.NewManager(dbPath)
	if err != nil {
		log.Fatalf("opening disk file %s: %v", dbPath, err)
	}
	pool := buffer.NewPool(cfg, dm)
	tree := index.NewBTree[int64](pool, page.Int64Codec{}, page.CompareInt64, cfg.LeafMaxSize, cfg.InternalMaxSize)
	closeFn := func() {
		pool.FlushAll()
		pool.Close()
		if err := dm.Close(); err != nil {
			log.Printf("closing disk file: %v", err)
		}
	}
	return pool, tree, closeFn
}

var loadCmd = &cobra.Command{
	Use:   "load <count>",
	Short: "Insert <count> sequential keys starting at 0",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var n int
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n <= 0 {
			log.Fatalf("invalid count %q", args[0])
		}
		pool, tree, closeFn := openTree()
		defer closeFn()

		for i := int64(0); i < int64(n); i++ {
			if !tree.Insert(i, corebase.RID{PageID: corebase.PageID(i), SlotNum: 0}) {
				log.Printf("key %d already present, skipped", i)
			}
		}
		fmt.Printf("loaded %d keys, root page id %d\n", n, tree.GetRootPageId())
		report(pool)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Look up a single key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var key int64
		if _, err := fmt.Sscanf(args[0], "%d", &key); err != nil {
			log.Fatalf("invalid key %q", args[0])
		}
		_, tree, closeFn := openTree()
		defer closeFn()

		values, ok := tree.GetValue(key)
		if !ok {
			fmt.Printf("key %d not found\n", key)
			return
		}
		fmt.Printf("key %d -> %s\n", key, values[0])
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the whole tree in key order",
	Run: func(cmd *cobra.Command, args []string) {
		pool, tree, closeFn := openTree()
		defer closeFn()

		count := 0
		for it := tree.Begin(); !it.IsEnd(); it.Next() {
			fmt.Printf("%d -> %s\n", it.Key(), it.Value())
			count++
		}
		fmt.Printf("scanned %d entries\n", count)
		report(pool)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a single key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var key int64
		if _, err := fmt.Sscanf(args[0], "%d", &key); err != nil {
			log.Fatalf("invalid key %q", args[0])
		}
		_, tree, closeFn := openTree()
		defer closeFn()

		tree.Remove(key)
		fmt.Printf("removed key %d (if present)\n", key)
	},
}

func report(pool *buffer.Pool) {
	stats := pool.Stats()
	fmt.Printf("buffer pool: hit=%d miss=%d eviction=%d\n", stats["hit"], stats["miss"], stats["eviction"])
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "labdemo.db", "path to the backing file")
	rootCmd.AddCommand(loadCmd, getCmd, scanCmd, removeCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
