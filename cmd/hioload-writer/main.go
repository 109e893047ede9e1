//go:build linux
// +build linux

// File: cmd/hioload-writer/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Command hioload-writer forwards stdin lines to a TCP peer or a FIFO through
// a writer source driven by a host loop.
//
//	hioload-writer -addr 127.0.0.1:9000 < input.txt
//	hioload-writer -fifo /tmp/out.fifo
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/control"
	"github.com/momentics/hioload-writer/loop"
	"github.com/momentics/hioload-writer/transport"
	"github.com/momentics/hioload-writer/transport/tcp"
	"github.com/momentics/hioload-writer/writer"
	_ "go.uber.org/automaxprocs"
)

func main() {
	addr := flag.String("addr", "", "TCP address to connect to")
	fifo := flag.String("fifo", "", "FIFO path to write to (must have a reader)")
	queueSize := flag.Int("queue", 1024, "outgoing queue capacity in messages")
	readBuf := flag.Int("readbuf", 64*1024, "read buffer size in bytes")
	cpu := flag.Int("cpu", -1, "pin the loop thread to this CPU (-1 disables)")
	statsEvery := flag.Duration("stats", 0, "dump debug probes at this interval (0 disables)")
	flag.Parse()

	if (*addr == "") == (*fifo == "") {
		log.Fatalf("[main] exactly one of -addr or -fifo is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	cfg := writer.DefaultConfig()
	cfg.Name = "stdin"
	cfg.QueueCapacity = *queueSize
	cfg.ReadBufferSize = *readBuf
	cfg.Debug = probes

	handler := &writer.Callbacks{
		Disconnected: func(fromPeer bool, unwritten [][]byte) {
			log.Printf("[main] disconnected (peer=%t), %d messages unwritten", fromPeer, len(unwritten))
			cancel()
		},
		WriteResult: func(err error, msg []byte, written int) {
			if err != nil {
				log.Printf("[main] write failed after %d/%d bytes: %v", written, len(msg), err)
			}
		},
		ReceivedData: func(data []byte) {
			os.Stdout.Write(data)
		},
		Exception: func(err error) {
			log.Printf("[main] exception: %v", err)
		},
	}

	var src *writer.Source
	var attach func()
	if *addr != "" {
		conn, err := tcp.NewConnector(cfg, handler)
		if err != nil {
			log.Fatalf("[main] connector: %v", err)
		}
		defer conn.Close()
		src = conn.Source
		attach = func() {
			if err := conn.Connect(*addr); err != nil {
				log.Printf("[main] connect %s: %v", *addr, err)
			}
		}
	} else {
		s, err := writer.New(cfg, handler)
		if err != nil {
			log.Fatalf("[main] writer: %v", err)
		}
		defer s.Close()
		src = s
		attach = func() {
			ep, err := transport.OpenFIFO(*fifo)
			if err == nil {
				err = s.Attach(ep)
			}
			if err != nil {
				log.Printf("[main] fifo %s: %v", *fifo, err)
				cancel()
			}
		}
	}

	lcfg := loop.DefaultConfig()
	lcfg.Pin, lcfg.CPU = *cpu >= 0, *cpu
	l, err := loop.New(lcfg)
	if err != nil {
		log.Fatalf("[main] loop: %v", err)
	}
	defer l.Close()
	if err := l.Add(src); err != nil {
		log.Fatalf("[main] loop add: %v", err)
	}
	l.Post(attach)

	go forwardStdin(ctx, src)
	if *statsEvery > 0 {
		go dumpProbes(ctx, probes, *statsEvery)
	}

	if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[main] loop: %v", err)
	}
	log.Printf("[main] %s", src.Stats())
}

// forwardStdin enqueues every line of stdin, backing off while the queue is
// full, then asks the source to close once everything is written.
func forwardStdin(ctx context.Context, src *writer.Source) {
	// wait for the connector to start attaching before the first write
	for src.State() == api.StateDetached {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		msg := make([]byte, 0, len(sc.Bytes())+1)
		msg = append(append(msg, sc.Bytes()...), '\n')
		for !src.Write(msg) {
			if st := src.State(); st != api.StateAttaching && st != api.StateAttached {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
	if err := sc.Err(); err != nil {
		log.Printf("[main] stdin: %v", err)
	}
	src.RequestClose()
}

func dumpProbes(ctx context.Context, probes *control.DebugProbes, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for k, v := range probes.DumpState() {
				log.Printf("[stats] %s: %v", k, v)
			}
		}
	}
}
