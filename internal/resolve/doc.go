// Package resolve discovers the dependency tree of a mod and flattens it into
// a download order.
//
// Resolution is a depth-first walk over catalog pages obtained from a
// portal.Provider. Each call owns its visited set, so a Resolver can serve
// concurrent calls as long as the Provider is safe for concurrent use.
//
// Failures are best effort below the root: a dependency whose page cannot be
// read is logged and dropped, and its siblings are still resolved. Only a
// failure of the root page is returned to the caller.
//
// # Ordering
//
// Flatten walks the tree in post-order, so every dependency precedes the mods
// that need it:
//
//	tree, err := resolver.Resolve(ctx, pageURL, false)
//	list := resolve.Flatten(tree, excluded)
//	// A requires B and C, B requires D: list is [D B C A]
package resolve
