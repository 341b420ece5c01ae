// Package node implements Node: the process-wide container that owns a
// ZeroMQ context, a static system map, an optional Router, and the registry
// of live MessageBoxes it serves.
package node

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minx-zmesh/zmesh/box"
	"github.com/minx-zmesh/zmesh/config"
)

// Node owns every MessageBox a process creates via At, plus (optionally) the
// Router that accepts inbound connections on bindAddress. A Node with no
// bindAddress is client-only: it can still Tell/Ask remote boxes, but never
// receives frames addressed to it.
type Node struct {
	ctx    context.Context
	cancel context.CancelFunc

	systemMap map[string]string
	cfg       config.NodeConfig
	logger    *zap.Logger

	boxesMu sync.Mutex
	boxes   map[string]*box.MessageBox

	router *router
}

// NewNode creates a Node. If bindAddress is non-empty, a ROUTER socket is
// bound and its loop started immediately; otherwise the node is client-only.
// systemMap maps a box name to the "host:port" address that owns it; every
// box a caller requests via At is looked up there.
func NewNode(bindAddress string, systemMap map[string]string, cfg config.NodeConfig) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		ctx:       ctx,
		cancel:    cancel,
		systemMap: systemMap,
		cfg:       cfg,
		logger:    cfg.ResolvedLogger(),
		boxes:     make(map[string]*box.MessageBox),
	}

	if bindAddress != "" {
		r, err := newRouter(ctx, bindAddress, n, cfg)
		if err != nil {
			cancel()
			return nil, err
		}
		n.router = r
		r.start()
	}

	return n, nil
}

// At returns the live MessageBox for name, creating and dialing it on first
// use from the node's system map. Lookup and creation are serialized under a
// single lock.
func (n *Node) At(name string) (*box.MessageBox, error) {
	addr, ok := n.systemMap[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBox, name)
	}

	n.boxesMu.Lock()
	defer n.boxesMu.Unlock()

	if b, ok := n.boxes[name]; ok {
		return b, nil
	}

	b, err := box.New(n.ctx, name, addr, n.cfg.BoxConfigFor())
	if err != nil {
		return nil, err
	}
	n.boxes[name] = b
	return b, nil
}

// Stop shuts down the node: the router loop (if any) terminates, every live
// box is closed, and every outstanding Ask on those boxes fails with
// ErrShutdown. Stop is idempotent.
func (n *Node) Stop() {
	if n.ctx.Err() != nil {
		return // already stopped
	}
	n.cancel()

	if n.router != nil {
		n.router.stop()
	}

	n.boxesMu.Lock()
	boxes := make([]*box.MessageBox, 0, len(n.boxes))
	for _, b := range n.boxes {
		boxes = append(boxes, b)
	}
	n.boxesMu.Unlock()

	// Each box's Close joins its own worker goroutines, so closing the
	// whole set concurrently bounds Stop's latency to the slowest box
	// rather than their sum.
	var g errgroup.Group
	for _, b := range boxes {
		b := b
		g.Go(func() error {
			b.Close()
			return nil
		})
	}
	_ = g.Wait()
}
