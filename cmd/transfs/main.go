/*
transfs is a FUSE filesystem that presents a curated, per-client view of a
backing content tree, rewriting paths per-system and synthesizing ZIP
archives as browseable directories - it is meant to be driven through
mount.transfs rather than invoked directly.
*/
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/cobra"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/logging"
	"github.com/retrofs/transfs/internal/vfs"
	"github.com/retrofs/transfs/internal/webserver"
	"github.com/retrofs/transfs/internal/zipindex"
)

const stackTraceBuffer = 1 << 24

// Version is the program version (set at build time via -ldflags).
var Version string

func main() {
	root := newRootCommand()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath         string
		webserverAddr      string
		fdCacheSize        int
		fdCacheTTL         time.Duration
		attrCacheSize      int
		dirCacheSize       int
		streamingThreshold uint64
		verbose            bool
	)

	cmd := &cobra.Command{
		Use:   "transfs MOUNTPOINT",
		Short: "transfs mounts a curated, rule-driven view of a content tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := runOptions{
				mountpoint:         args[0],
				configPath:         configPath,
				webserverAddr:      webserverAddr,
				fdCacheSize:        fdCacheSize,
				fdCacheTTL:         fdCacheTTL,
				attrCacheSize:      attrCacheSize,
				dirCacheSize:       dirCacheSize,
				streamingThreshold: streamingThreshold,
				verbose:            verbose,
			}

			return run(opts)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/etc/transfs.yaml", "path to the configuration document")
	cmd.Flags().StringVar(&webserverAddr, "webserver", "", "address to serve the diagnostics dashboard on (empty disables it)")
	cmd.Flags().IntVar(&fdCacheSize, "fd-cache-size", 64, "maximum number of cached ZIP indexes")
	cmd.Flags().DurationVar(&fdCacheTTL, "fd-cache-ttl", zipindex.DefaultMaxAge, "max age of a cached ZIP index before rebuild")
	cmd.Flags().IntVar(&attrCacheSize, "attr-cache-size", 4096, "maximum number of cached attribute records")
	cmd.Flags().IntVar(&dirCacheSize, "dir-cache-size", 1024, "maximum number of cached directory listings")
	cmd.Flags().Uint64Var(&streamingThreshold, "streaming-threshold", 4<<20, "ZIP entry size, in bytes, at or below which reads are served from memory")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every lookup and readdir, not just errors")

	return cmd
}

type runOptions struct {
	mountpoint         string
	configPath         string
	webserverAddr      string
	fdCacheSize        int
	fdCacheTTL         time.Duration
	attrCacheSize      int
	dirCacheSize       int
	streamingThreshold uint64
	verbose            bool
}

func run(opts runOptions) error {
	logging.Printf("transfs %s starting\n", Version)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flattenZips, _ := strconv.ParseBool(os.Getenv("FLATTEN_ZIPS"))
	persistZipIndex, _ := strconv.ParseBool(os.Getenv("PERSIST_ZIP_INDEX"))
	_ = persistZipIndex // advisory only; in-memory registry does not persist across restarts

	if flattenZips {
		for ci := range cfg.Clients {
			for si := range cfg.Clients[ci].Systems {
				for mi := range cfg.Clients[ci].Systems[si].Maps {
					if sa, ok := cfg.Clients[ci].Systems[si].Maps[mi].Value.(*config.SoftwareArchives); ok {
						sa.ZipMode = config.ZipModeFlatten
					}
				}
			}
		}
	}

	zips := zipindex.NewRegistry(opts.fdCacheSize, opts.fdCacheTTL)
	fsys := vfs.New(cfg, zips, opts.dirCacheSize, opts.attrCacheSize)
	fsys.Options.StreamingThreshold.Store(opts.streamingThreshold)
	fsys.Verbose = opts.verbose

	c, err := fuse.Mount(opts.mountpoint, fuse.FSName("transfs"), fuse.AllowOther())
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	defer c.Close()
	defer fuse.Unmount(opts.mountpoint) //nolint:errcheck

	var wg sync.WaitGroup
	var serveErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fs.Serve(c, fsys); err != nil {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}()

	if opts.webserverAddr != "" {
		dash, err := webserver.NewFSDashboard(fsys, logging.Buffer, Version)
		if err != nil {
			logging.Printf("dashboard disabled: %v\n", err)
		} else {
			srv := dash.Serve(opts.webserverAddr)
			defer srv.Close()
		}
	}

	sigUnmount := make(chan os.Signal, 1)
	signal.Notify(sigUnmount, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for range sigUnmount {
			logging.Println("signal received, unmounting...")

			if err := fuse.Unmount(opts.mountpoint); err != nil {
				logging.Printf("unmount error: %v (will retry on next signal)\n", err)

				continue
			}

			return
		}
	}()

	sigTrace := make(chan os.Signal, 1)
	signal.Notify(sigTrace, syscall.SIGUSR1)

	go func() {
		for range sigTrace {
			logging.Println("signal received, dumping stacktrace to stderr...")
			buf := make([]byte, stackTraceBuffer)
			n := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:n])
		}
	}()

	wg.Wait()

	return serveErr
}
