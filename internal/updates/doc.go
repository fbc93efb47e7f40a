// Package updates compares installed mod archives against the catalog and
// downloads newer versions.
//
// A Checker reads the "<name>_<version>.zip" files of a mods directory and
// asks a portal.Provider for the latest version of each mod:
//
//	checker := updates.NewChecker(provider, settings, log)
//	report, err := checker.Check(ctx, "/home/me/.factorio/mods", "")
//	for _, u := range report.Updates {
//		fmt.Println(u.Name, u.Current, "->", u.Latest)
//	}
//
// Apply downloads the listed updates through a Downloader and can remove
// the archives they supersede.
package updates
