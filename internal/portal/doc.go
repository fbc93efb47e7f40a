// Package portal reads mod information from the Factorio mod portal.
//
// The resolver only depends on the Provider interface so tests can plug in
// an in-memory catalog. Two production Providers exist, picked with New:
//
//   - APIProvider reads the portal JSON API (<api>/<name>/full) and parses
//     the dependency strings of the latest release's info.json. It is the
//     default.
//   - Scraper fetches pages through the shared HTTP client and extracts data
//     with goquery.
//
// # Page Structure
//
// Scraper expects the markup the mirror site renders in a browser. The
// fragment of a mirror URL points at the catalog page, and that is what
// FetchPage downloads, so the selectors below only match when the catalog
// host serves pre-rendered mirror markup (a rendering proxy configured as
// catalog_url, for example). Against the plain mods.factorio.com HTML the
// name and version lookups fail with parsing errors; use the API provider
// there.
//
// A rendered mod page carries:
//   - the mod name in dd#mod-info-name
//   - the published versions in select#mod-version, the newest one marked
//     with "(last)" in its option text
//
// The dependencies page of a mod lists links with the classes
// mod-dependencies-required and mod-dependencies-optional.
//
// # Mod References
//
// Users name mods in several ways. ParseModRef accepts all of them:
//
//	ref, _ := portal.ParseModRef("flib")                                   // latest
//	ref, _ = portal.ParseModRef("flib@0.12.4")                             // pinned
//	ref, _ = portal.ParseModRef("flib@latest")                             // latest
//	ref, _ = portal.ParseModRef("https://mods.factorio.com/mod/flib?from=x") // page URL
package portal
