// Package droidlog turns Android logcat threadtime output into structured
// records and filters them.
//
// Quick start:
//
//	d := droidlog.New(droidlog.WithTagFilter("ActivityManager || AndroidRuntime"))
//	records, err := d.AssembleReader(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range records {
//	    fmt.Println(r.Level, r.Tag, r.Message)
//	}
//
// Multi-line messages (stack traces, wrapped output) and lines written by one
// thread within the same millisecond are assembled into a single Record.
// A Droidlog is safe for concurrent use; filter settings may change while a
// Stream is running and apply to every record assembled afterwards.
package droidlog
