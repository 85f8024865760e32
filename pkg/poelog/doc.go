// Package poelog provides parsing and monitoring of the Path of Exile
// client log (Client.txt).
//
// This package allows you to:
//   - Follow the log file in real time and receive structured events
//   - Parse a single line, a reader, or a whole file offline
//   - Define custom event rules via YAML configuration
//
// Every record carries the matched [Event] and the [Info] taken from the
// line prefix (timestamp, tick counter, severity).
//
// # Basic Usage
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	records, errs, err := poelog.WatchWithOptions(ctx,
//	    poelog.WithIncludeTypes(poelog.EventJoinedArea, poelog.EventLevelUp),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    select {
//	    case r, ok := <-records:
//	        if !ok {
//	            return
//	        }
//	        switch r.Event.Type {
//	        case poelog.EventJoinedArea:
//	            fmt.Printf("entered %s\n", r.Event.Area)
//	        case poelog.EventLevelUp:
//	            fmt.Printf("%s is now level %d\n", r.Event.Player, r.Event.Level)
//	        }
//	    case err, ok := <-errs:
//	        if !ok {
//	            return
//	        }
//	        log.Printf("error: %v", err)
//	    }
//	}
//
// # Building Blocks
//
// The watcher is assembled from reusable subpackages:
//
//   - [poll] turns a growing file into batches of bytes, characters and lines
//   - [dispatch] runs lines through filters and regular-expression rules
//   - [queue] buffers events between the reader and the consumer
//   - [pattern] loads custom rules from YAML
//
// [Events] connects them and can be driven from any line source.
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with Grinding Gear Games.
package poelog
