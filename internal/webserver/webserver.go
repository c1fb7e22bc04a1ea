// Package webserver implements the diagnostics dashboard.
package webserver

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"slices"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"github.com/retrofs/transfs/assets"
	"github.com/retrofs/transfs/internal/logging"
	"github.com/retrofs/transfs/internal/vfs"
)

var (
	//go:embed templates/*.html
	templateFS    embed.FS
	indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

	errInvalidArgument = errors.New("invalid argument")
)

// FSDashboard is the implementation of the filesystem diagnostics dashboard.
type FSDashboard struct {
	version string
	fsys    *vfs.FS
	rbuf    *logging.RingBuffer
}

// NewFSDashboard returns a pointer to a new [FSDashboard].
func NewFSDashboard(fsys *vfs.FS, rbuf *logging.RingBuffer, version string) (*FSDashboard, error) {
	if fsys == nil {
		return nil, fmt.Errorf("%w: need filesystem", errInvalidArgument)
	}
	if rbuf == nil {
		return nil, fmt.Errorf("%w: need ring buffer", errInvalidArgument)
	}

	return &FSDashboard{
		version: version,
		fsys:    fsys,
		rbuf:    rbuf,
	}, nil
}

// Serve serves the diagnostics dashboard as part of a [http.Server].
func (d *FSDashboard) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: d.dashboardMux()}

	go func() {
		defer func() {
			r := recover()
			if r != nil {
				fmt.Fprintf(os.Stderr, "(webserver) PANIC: %v\n", r)
				debug.PrintStack()
			}
		}()
		d.rbuf.Printf("serving dashboard on %s\n", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.rbuf.Printf("HTTP error: %v\n", err)
		}
	}()

	return srv
}

func (d *FSDashboard) dashboardMux() *mux.Router {
	mux := mux.NewRouter()

	mux.HandleFunc("/", d.dashboardHandler)
	mux.HandleFunc("/metrics.json", d.metricsHandler)
	mux.HandleFunc("/gc", d.gcHandler)
	mux.HandleFunc("/reset", d.resetMetricsHandler)
	mux.HandleFunc("/set/stream-threshold/{value}", d.thresholdHandler)

	mux.HandleFunc("/transfs.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(assets.Logo)
	})

	return mux
}

type fsDashboardData struct {
	AllocBytes            string   `json:"allocBytes"`
	AttrCacheHitRatio      string   `json:"attrCacheHitRatio"`
	DirCacheHitRatio       string   `json:"dirCacheHitRatio"`
	Logs                   []string `json:"logs"`
	NumGC                  uint32   `json:"numGc"`
	OpenZips               int64    `json:"openZips"`
	RingBufferSize         int      `json:"ringBufferSize"`
	StreamingThreshold     string   `json:"streamingThreshold"`
	SysBytes               string   `json:"sysBytes"`
	TotalAlloc             string   `json:"totalAlloc"`
	TotalAttrCacheHits     int64    `json:"totalAttrCacheHits"`
	TotalAttrCacheMisses   int64    `json:"totalAttrCacheMisses"`
	TotalClosedZips        int64    `json:"totalClosedZips"`
	TotalDirCacheHits      int64    `json:"totalDirCacheHits"`
	TotalDirCacheMisses    int64    `json:"totalDirCacheMisses"`
	TotalErrors            int64    `json:"totalErrors"`
	TotalLookups           int64    `json:"totalLookups"`
	TotalNotFound          int64    `json:"totalNotFound"`
	TotalOpenedZips        int64    `json:"totalOpenedZips"`
	TotalReaddirs          int64    `json:"totalReaddirs"`
	TotalWrites            int64    `json:"totalWrites"`
	Uptime                 string   `json:"uptime"`
	Version                string   `json:"version"`
}

func (d *FSDashboard) collectMetrics() fsDashboardData {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	lines := d.rbuf.Lines()
	slices.Reverse(lines)

	return fsDashboardData{
		AllocBytes:           humanize.IBytes(m.Alloc),
		AttrCacheHitRatio:    ratio(d.fsys.Metrics.TotalAttrCacheHits.Load(), d.fsys.Metrics.TotalAttrCacheMisses.Load()),
		DirCacheHitRatio:     ratio(d.fsys.Metrics.TotalDirCacheHits.Load(), d.fsys.Metrics.TotalDirCacheMisses.Load()),
		Logs:                 lines,
		NumGC:                m.NumGC,
		OpenZips:             d.fsys.Metrics.OpenZips.Load(),
		RingBufferSize:       d.rbuf.Size(),
		StreamingThreshold:   humanize.Bytes(d.fsys.Options.StreamingThreshold.Load()),
		SysBytes:             humanize.IBytes(m.Sys),
		TotalAlloc:           humanize.IBytes(m.TotalAlloc),
		TotalAttrCacheHits:   d.fsys.Metrics.TotalAttrCacheHits.Load(),
		TotalAttrCacheMisses: d.fsys.Metrics.TotalAttrCacheMisses.Load(),
		TotalClosedZips:      d.fsys.Metrics.TotalClosedZips.Load(),
		TotalDirCacheHits:    d.fsys.Metrics.TotalDirCacheHits.Load(),
		TotalDirCacheMisses:  d.fsys.Metrics.TotalDirCacheMisses.Load(),
		TotalErrors:          d.fsys.Metrics.Errors.Load(),
		TotalLookups:         d.fsys.Metrics.TotalLookups.Load(),
		TotalNotFound:        d.fsys.Metrics.TotalNotFound.Load(),
		TotalOpenedZips:      d.fsys.Metrics.TotalOpenedZips.Load(),
		TotalReaddirs:        d.fsys.Metrics.TotalReaddirs.Load(),
		TotalWrites:          d.fsys.Metrics.TotalWrites.Load(),
		Uptime:               humanize.Time(d.fsys.MountTime),
		Version:              d.version,
	}
}

func (d *FSDashboard) dashboardHandler(w http.ResponseWriter, _ *http.Request) {
	data := d.collectMetrics()

	if err := indexTemplate.Execute(w, data); err != nil {
		d.rbuf.Printf("HTTP template execution error: %v\n", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (d *FSDashboard) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	data := d.collectMetrics()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (d *FSDashboard) gcHandler(w http.ResponseWriter, _ *http.Request) {
	runtime.GC()
	debug.FreeOSMemory()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	d.rbuf.Printf("GC forced via API, current heap: %s.\n", humanize.IBytes(m.Alloc))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "GC forced, current heap: %s.\n", humanize.IBytes(m.Alloc))
}

func (d *FSDashboard) resetMetricsHandler(w http.ResponseWriter, _ *http.Request) {
	d.fsys.Metrics.Errors.Store(0)
	d.fsys.Metrics.TotalOpenedZips.Store(0)
	d.fsys.Metrics.TotalClosedZips.Store(0)
	d.fsys.Metrics.TotalAttrCacheHits.Store(0)
	d.fsys.Metrics.TotalAttrCacheMisses.Store(0)
	d.fsys.Metrics.TotalDirCacheHits.Store(0)
	d.fsys.Metrics.TotalDirCacheMisses.Store(0)
	d.fsys.Metrics.TotalLookups.Store(0)
	d.fsys.Metrics.TotalReaddirs.Store(0)
	d.fsys.Metrics.TotalNotFound.Store(0)
	d.fsys.Metrics.TotalWrites.Store(0)

	d.rbuf.Println("Metrics reset via API.")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Metrics reset.")
}

func (d *FSDashboard) thresholdHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	val, err := humanize.ParseBytes(vars["value"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid string value: %v", err), http.StatusBadRequest)

		return
	}
	d.fsys.Options.StreamingThreshold.Store(val)

	d.rbuf.Printf("Streaming threshold set via API: %s.\n", humanize.Bytes(val))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Streaming threshold set: %s.\n", humanize.Bytes(val))
}

func ratio(hits, misses int64) string {
	total := hits + misses
	if total == 0 {
		return "0.00%"
	}

	return fmt.Sprintf("%.2f%%", (float64(hits)/float64(total))*100)
}
