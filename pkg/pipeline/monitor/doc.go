/*
Package monitor samples a running topology on a cron schedule, turns queue
depth into scaling commands and publishes node snapshots.

	s, err := monitor.New[Order](chain, monitor.Config{
		Schedule:  "@every 2s",
		Policy:    monitor.DepthPolicy{High: 0.75, Low: 0.10},
		Publisher: monitor.NewRedisPublisher(rdb, "pipexec", time.Minute),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	s.Start()
	defer s.Stop()

Commands are pushed on the predecessor of the node being judged, so they
are picked up by that node's own workers, exactly like the commands a
Backpressure stage leaves behind. Nodes that are their own predecessor
(chain heads, the first column of a mesh) are never scaled by the sampler.
*/
package monitor
