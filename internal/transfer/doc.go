// Package transfer downloads one artifact to disk with resume and retry.
//
// Bytes are written to "<dest>.part" and the file is renamed to dest only
// when the body has been received completely. When resume is requested and
// the server honours byte ranges, a later attempt continues from the end of
// the partial file instead of starting over.
//
// Every failure goes through failure.Decide: filesystem and validation
// failures end the transfer at once, network failures are retried until
// the attempt budget is spent and parsing failures are retried once.
// Cancelling the context stops the transfer at the next chunk boundary and
// leaves the partial file in place.
//
// # Usage
//
//	engine := transfer.NewEngine(client, recovery.NewManager(client, log), log, transfer.Options{
//	    RetryDelay: 2 * time.Second,
//	})
//	outcome := engine.Transfer(ctx, url, "/mods/flib_0.12.4.zip", true, 3,
//	    func(fraction float64, downloaded, total int64, speed float64) {
//	        fmt.Printf("%.0f%%\n", fraction*100)
//	    })
package transfer
