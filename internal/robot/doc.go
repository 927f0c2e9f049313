// Package robot drives a Chrome session against the OCR breach portal and
// downloads the archive and current breach reports as CSV files.
//
// A Session owns one browser. Callers open a fresh Session per report,
// call Download, then Close it; Close tears down the browser and sweeps for
// leftover browser processes.
package robot
