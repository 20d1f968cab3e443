/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command dispatchd is a minimal net.Listener-driven runner: it accepts TCP
// connections, wraps each one in a netconn.Conn, drives it through a
// dispatch.ServerConnection, and feeds every dispatched request to a single
// application Handler. It exists for demonstration and for exercising the
// connection core against a real socket rather than fakestream.FakeStream.
package main

import (
	"flag"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/badu/dispatch/dispatch"
	"github.com/badu/dispatch/executor"
	"github.com/badu/dispatch/netconn"
)

// tcpKeepAliveListener wraps a *net.TCPListener so Accept enables TCP
// keep-alives on every accepted connection.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (l tcpKeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(3 * time.Minute)
	return conn, nil
}

// Handler is the application hook: it receives one DispatchContext per
// request and is responsible for producing a response before returning.
type Handler func(*dispatch.DispatchContext) error

// Serve accepts connections from l until Accept returns a permanent error,
// driving each one with handler. Transient Accept errors are retried with
// the same exponential backoff the standard library's Server.Serve uses.
func Serve(l net.Listener, cfg dispatch.Config, handler Handler) error {
	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := time.Second; tempDelay > max {
					tempDelay = max
				}
				cfg.Logger.Warn("accept error, retrying", zap.Duration("delay", tempDelay), zap.Error(err))
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		go serveOne(conn, cfg, handler)
	}
}

func serveOne(raw net.Conn, cfg dispatch.Config, handler Handler) {
	strand := executor.NewStrand()
	dispatcherExec := executor.NewGo()
	sock := netconn.Wrap(raw, strand, strand)

	id := dispatch.NewConnectionID()
	sc := dispatch.NewServerConnection(id, sock, strand, dispatcherExec, cfg)

	var pump func()
	pump = func() {
		sc.AsyncWaitDispatch(func(dc *dispatch.DispatchContext, err error) {
			if err != nil {
				return
			}
			dc.Run(handler)
			pump()
		})
	}
	pump()

	done := make(chan struct{})
	sc.AsyncStart(func(error) { close(done) })
	<-done
	_ = raw.Close()
}

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}
	listener := tcpKeepAliveListener{ln.(*net.TCPListener)}

	cfg := dispatch.Config{Logger: logger}
	echo := func(dc *dispatch.DispatchContext) error {
		dc.Response.MutableHeader().SetStatus(200, "OK")
		_, err := dc.Response.Flush([]byte("ok\n"))
		return err
	}

	logger.Info("listening", zap.String("addr", *addr))
	if err := Serve(listener, cfg, echo); err != nil {
		logger.Fatal("serve failed", zap.Error(err))
	}
}
