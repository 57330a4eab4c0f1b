// Package process provides subprocess lifecycle management for one-shot jobs.
//
// Process wraps os/exec for a single subprocess:
//   - Run blocks until exit or context cancellation
//   - Graceful stop with SIGINT to the process group, SIGKILL after a timeout
//   - Output streaming with pluggable log parsing
//
// Pool runs named jobs with bounded concurrency:
//   - Start queues a job; at most MaxConcurrent run at once
//   - Terminal states are exited, error (with *ExitError) and cancelled
//   - Callback hooks for command generation and state changes
//   - Wait drains the queue, StopAll cancels it
//
// Example usage with Pool:
//
//	pool := process.NewPool(&process.PoolOptions{
//	    CommandProvider: func(id string) (string, error) {
//	        return ffmpeg.BuildTranscodeCommand(ffmpeg.TranscodeParams{Input: id, Output: out}), nil
//	    },
//	    OnStateChange: func(id string, old, new process.State, err error) {
//	        log.Printf("job %s: %s -> %s", id, old, new)
//	    },
//	})
//	pool.Start("/recordings/2025-01-27/2025-01-27-10-30-00-123.mjpeg")
//	pool.Wait()
package process
