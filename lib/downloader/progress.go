package downloader

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/hashicorp/go-getter"
)

const barTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// DefaultProgressBar shows one bar per concurrent download, sharing a single pool.
var DefaultProgressBar getter.ProgressTracker = &progressBar{} //nolint:gochecknoglobals // shared pool

// progressBar keeps a pb pool alive while at least one download is in flight.
type progressBar struct {
	lock sync.Mutex
	pool *pb.Pool
	pbs  int
}

// TrackProgress wraps stream in a bar that finishes when the stream is closed. totalSize can be 0.
func (cpb *progressBar) TrackProgress(src string, currentSize, totalSize int64, stream io.ReadCloser) io.ReadCloser {
	cpb.lock.Lock()
	defer cpb.lock.Unlock()

	bar := pb.New64(totalSize).SetTemplateString(barTemplate)
	bar.SetCurrent(currentSize)
	bar.Set(pb.Bytes, true)
	bar.Set("prefix", filepath.Base(src)+" ")

	if cpb.pool == nil {
		cpb.pool = pb.NewPool()
		_ = cpb.pool.Start() //nolint:errcheck // terminal output only
	}

	cpb.pool.Add(bar)
	cpb.pbs++

	return &readCloser{
		Reader: bar.NewProxyReader(stream),
		close: func() error {
			cpb.lock.Lock()
			defer cpb.lock.Unlock()

			bar.Finish()

			cpb.pbs--
			if cpb.pbs <= 0 {
				_ = cpb.pool.Stop() //nolint:errcheck // terminal output only
				cpb.pool = nil
			}

			return stream.Close()
		},
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (c *readCloser) Close() error { return c.close() }
