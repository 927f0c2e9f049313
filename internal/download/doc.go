// Package download watches a browser download directory and applies the
// post-download policy: waiting for in-progress markers to disappear,
// sweeping leftover partial files, and moving the finished report into its
// category subdirectory.
//
// Browsers write incomplete downloads under names carrying a marker such as
// "report.csv.part" (Firefox) or "report.csv.crdownload" (Chrome). The Monitor
// treats any entry whose lowercased name contains a marker as in progress.
package download
