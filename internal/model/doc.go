// Package model defines the core data structures used throughout
// the factorio-mod-downloader application.
//
// # ModReference
//
// ModReference is a resolved catalog entry: a mod name, the version that
// will be downloaded, the page it was read from and the storage URL the
// artifact is fetched from:
//
//	ref := model.ModReference{Name: "flib", Version: "0.15.0", DownloadURL: url}
//	fmt.Println(ref.FileName()) // "flib_0.15.0.zip"
//
// # Dependency trees
//
// DependencyNode is the transient tree built by a single resolution call.
// It is flattened into a DownloadList where every dependency precedes the
// mods that need it and each name appears once.
//
// # Results
//
// TransferOutcome describes one artifact transfer, AggregateResult the
// outcome of a whole request:
//
//	res := model.Merge(first, second)
//	fmt.Println(res.Success, res.TotalBytes)
package model
