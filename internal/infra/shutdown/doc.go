// Package shutdown ties a command's lifetime to termination signals.
//
// Usage:
//
//	h, ctx := shutdown.NewHandler(context.Background(), 5*time.Second)
//	defer h.Shutdown()
//	h.OnShutdown(func(context.Context) error { return workdir.Close() })
//	run(ctx)
package shutdown
