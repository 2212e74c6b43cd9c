// Package obsviz turns observation records into render-ready chart
// geometry.
//
// Usage:
//
//	import "github.com/spektr-org/obsviz/engine"
//
//	store := engine.NewRecordStore()
//	store.Replace(records)
//	session := engine.NewSession(store, engine.WithSource(src))
//	err := session.Apply(ctx, state)
//	geometry := session.Geometry()
//
// The engine owns filtering, paging, scales and color; sources (file,
// HTTP, SQLite) live in the source package and drawing in render.
package obsviz

// Version is the library version.
const Version = "0.1.0"
