package api

import (
	"runtime"
	"time"
)

// RuntimeMetrics is the verbose part of the health body.
type RuntimeMetrics struct {
	Uptime         string `json:"uptime"`
	Goroutines     int    `json:"goroutines"`
	HeapInUseBytes uint64 `json:"heap_in_use_bytes"`
	GCCycles       uint32 `json:"gc_cycles"`
	StreamClients  int    `json:"stream_clients"`
	StreamDropped  uint64 `json:"stream_dropped"`
}

func (s *Server) runtimeMetrics(startedAt time.Time) RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return RuntimeMetrics{
		Uptime:         time.Since(startedAt).Round(time.Second).String(),
		Goroutines:     runtime.NumGoroutine(),
		HeapInUseBytes: ms.HeapInuse,
		GCCycles:       ms.NumGC,
		StreamClients:  s.hub.ClientCount(),
		StreamDropped:  s.hub.Dropped(),
	}
}
