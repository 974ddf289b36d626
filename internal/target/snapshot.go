package target

import (
	"context"
	"sync"

	"github.com/agentstation/gatesync/pkg/catalog"
)

// Snapshot reads the target's current channels, models, vendors, and options
// as one concurrent batch. The diff engine requires all four, so the first
// failure fails the snapshot.
func (c *Client) Snapshot(ctx context.Context) (*catalog.TargetSnapshot, error) {
	snap := &catalog.TargetSnapshot{}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		channels, err := c.ListChannels(ctx)
		if err != nil {
			fail(err)
			return
		}
		snap.Channels = channels
	}()
	go func() {
		defer wg.Done()
		models, err := c.ListModels(ctx)
		if err != nil {
			fail(err)
			return
		}
		snap.Models = models
	}()
	go func() {
		defer wg.Done()
		vendors, err := c.ListVendors(ctx)
		if err != nil {
			fail(err)
			return
		}
		snap.Vendors = vendors
	}()
	go func() {
		defer wg.Done()
		options, err := c.GetOptions(ctx)
		if err != nil {
			fail(err)
			return
		}
		snap.Options = options
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return snap, nil
}
