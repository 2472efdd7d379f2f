// Package recording coordinates native capture sessions requested over a
// loosely typed control channel.
//
// Invariants:
// - At most one session is Active or Active-Failed at any time.
// - A rejected start never mutates the existing session.
// - Every stop that targets the stored session returns the coordinator to Idle.
// - Every outcome is delivered through the EventQueue exactly once.
//
// Usage:
//
//	coord, _ := recording.NewCoordinator(recording.Options{
//		Engine:   bridge,
//		Resolver: recording.NewPathResolver("/srv/project"),
//	})
//	resp, _ := coord.HandleMessage(ctx, map[string]interface{}{
//		"type": "iplug", "action": "record_start", "userId": "u1",
//	})
//	events := coord.Poll()
//	_, _ = resp, events
package recording
