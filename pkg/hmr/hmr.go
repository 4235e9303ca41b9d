// Package hmr pushes hot module replacement updates to connected clients.
//
// Each connection owns a Session holding the last dependency snapshot of its
// bundle. A file change runs one cycle on every session: the session decides
// whether the file's direct requires changed, computes the ordered modules to
// re-send, and the Channel frames the result as update-start, update or
// error, and update-done.
package hmr

// DefaultPath is where clients connect for updates.
const DefaultPath = "/hot"
