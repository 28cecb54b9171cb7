/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package graph

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// RunParallel calls work once for every node in sorted, starting a node only
// after all of its dependencies in sorted have completed successfully.
// Dependencies outside sorted are treated as already built.
//
// At most limit units run at once; limit <= 0 means runtime.NumCPU().
// Dispatch is greedy: the first ready node in sorted order starts next.
//
// The first failure cancels the context passed to running units and stops
// dispatch. RunParallel then waits for running units to return and reports
// the first error.
func RunParallel[T comparable](ctx context.Context, sorted []T, g *DependencyGraph[T], limit int, work func(context.Context, T) error) error {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	scheduled := make(map[T]bool, len(sorted))
	for _, n := range sorted {
		scheduled[n] = true
	}

	eg, egCtx := errgroup.WithContext(ctx)
	done := make(chan T, len(sorted))
	completed := make(map[T]bool, len(sorted))
	pending := slices.Clone(sorted)
	running := 0

	ready := func(n T) bool {
		for _, dep := range g.Dependencies(n) {
			if scheduled[dep] && !completed[dep] {
				return false
			}
		}
		return true
	}

dispatch:
	for len(pending) > 0 {
		for running < limit {
			i := slices.IndexFunc(pending, ready)
			if i < 0 {
				break
			}
			node := pending[i]
			pending = slices.Delete(pending, i, i+1)
			running++
			eg.Go(func() error {
				if err := work(egCtx, node); err != nil {
					return err
				}
				done <- node
				return nil
			})
		}

		if running == 0 {
			// Nothing is ready and nothing will finish: the remaining
			// nodes wait on each other.
			return fmt.Errorf("%w: %d nodes could not be scheduled", ErrCycle, len(pending))
		}

		select {
		case node := <-done:
			running--
			completed[node] = true
		case <-egCtx.Done():
			break dispatch
		}
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
