// Package api exposes load runs over HTTP.
//
//	POST /load-runs       start a run
//	GET  /load-runs       list runs, newest first
//	GET  /load-runs/{id}  fetch one run
package api
