// Package debugdetect reports whether the current process is being
// debugged.
//
// It backs the fast path of debugger discovery: when no debugger is
// attached to the current process there is no point walking its ancestry
// looking for one. It is also used to refuse attaching a process to a
// debugger a second time.
//
// Example usage:
//
//	attached, err := debugdetect.IsDebuggerAttached()
//	if err != nil {
//		log.Fatalf("Failed to detect debugger: %v", err)
//	}
//	if !attached {
//		fmt.Println("Waiting for debugger...")
//		debugdetect.WaitForDebugger(ctx, 100*time.Millisecond)
//	}
//
// Supported platforms: windows, linux, darwin
package debugdetect
