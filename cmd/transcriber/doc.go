// Package main hosts the transcriber CLI entrypoint and command graph.
//
// Each command maps onto a client view: login and logout drive the session,
// status renders the transcription status (optionally watching it), list and
// show render the collection, and upload runs the upload workflow. Commands
// that need a signed-in user declare a route annotation; the root command
// sends it through the router guard before running them.
//
// Keep this package thin. Behavior belongs in the internal packages; commands
// only parse flags, call into the application context and render results.
package main
