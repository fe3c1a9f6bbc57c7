package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/derriclyns/memtrack"
	"github.com/derriclyns/memtrack/z"
)

// Churns allocations through a tracker between a low and a high watermark,
// dumping the usage report once a second. Useful for eyeballing the
// accounting against z.NumAllocBytes and, with -tags=jemalloc, against the
// jemalloc stats.

var (
	opts = flag.String("opts", "instrumented=false; mmap-threshold=1048576",
		"tracker options")
	lo = flag.Int64("lo", 256<<20, "low watermark in bytes")
	hi = flag.Int64("hi", 1<<30, "high watermark in bytes")
)

func churn(tr *memtrack.Tracker) {
	var live [][]byte
	increase := true

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	dump := time.NewTicker(time.Second)
	defer dump.Stop()

	for {
		select {
		case <-ticker.C:
			if increase {
				sz := 1 + rand.Intn(4<<20)
				buf := tr.Alloc(sz, "memtest.churn")
				if buf == nil {
					log.Fatalf("allocation of %d bytes failed", sz)
				}
				rand.Read(buf)
				live = append(live, buf)
			} else if len(live) > 0 {
				idx := rand.Intn(len(live))
				if !tr.Free(live[idx], "memtest.churn") {
					log.Fatal("free missed a tracked block")
				}
				live[idx] = live[len(live)-1]
				live = live[:len(live)-1]
			}

			cur := z.NumAllocBytes()
			if increase && cur > *hi {
				increase = false
			} else if !increase && cur < *lo {
				increase = true
			}
		case <-dump.C:
			fmt.Printf("%s\n", tr.Report())
			fmt.Printf("live: %d blocks, reserved: %s, increase? %v\n",
				tr.NumLive(), humanize.IBytes(uint64(z.NumAllocBytes())), increase)
		}
	}
}

func main() {
	flag.Parse()
	z.StatsPrint()

	tr, err := memtrack.NewTrackerFrom(z.NewSuperFlag(*opts))
	if err != nil {
		log.Fatalf("while creating tracker: %v", err)
	}
	churn(tr)
}
